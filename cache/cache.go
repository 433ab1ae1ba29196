// Package cache defines the artifact cache contract. Artifacts are keyed by
// (user, topic) and writes are last-write-wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
)

// Store persists finished artifacts. Get returns an error wrapping
// errors.ErrNotFound when nothing is cached for the key.
type Store interface {
	Get(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error)
	Put(ctx context.Context, userID, topicID string, doc *content.GeneratedTopicContent) error
}

// Key joins user and topic ids into one storage key. Colons in the parts are
// escaped so distinct pairs never collide.
func Key(userID, topicID string) string {
	esc := strings.NewReplacer(`\`, `\\`, ":", `\:`)
	return esc.Replace(userID) + ":" + esc.Replace(topicID)
}

// Encode serializes an artifact for storage.
func Encode(doc *content.GeneratedTopicContent) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("encode artifact: %w", serrors.ErrInvalidInput)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// Decode parses a stored artifact.
func Decode(data []byte) (*content.GeneratedTopicContent, error) {
	var doc content.GeneratedTopicContent
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &doc, nil
}

// NotFound builds the miss error for a key.
func NotFound(userID, topicID string) error {
	return fmt.Errorf("artifact %s/%s: %w", userID, topicID, serrors.ErrNotFound)
}
