package store

import (
	"context"
	"sync"

	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/content"
)

// InMemoryStore keeps encoded artifacts in process memory. Every Get decodes
// a fresh copy so callers never share state.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string][]byte)}
}

// Get implements cache.Store.
func (s *InMemoryStore) Get(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.items[cache.Key(userID, topicID)]
	s.mu.RUnlock()
	if !ok {
		return nil, cache.NotFound(userID, topicID)
	}
	return cache.Decode(data)
}

// Put implements cache.Store.
func (s *InMemoryStore) Put(ctx context.Context, userID, topicID string, doc *content.GeneratedTopicContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := cache.Encode(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[cache.Key(userID, topicID)] = data
	s.mu.Unlock()
	return nil
}

// Len returns the number of cached artifacts.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
