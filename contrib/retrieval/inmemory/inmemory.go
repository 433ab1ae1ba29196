package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/retrieval"
)

// Store keeps chunks in memory; lookups scan every record.
type Store struct {
	mu      sync.RWMutex
	records []retrieval.Record
	nextID  int64
}

// New creates an empty store.
func New() *Store {
	return &Store{nextID: 1}
}

// Add appends records, assigning ids to those without one.
func (s *Store) Add(records ...retrieval.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == 0 {
			r.ID = s.nextID
		}
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
		s.records = append(s.records, r)
	}
	sort.Slice(s.records, func(i, j int) bool { return s.records[i].ID < s.records[j].ID })
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type fileRecord struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	Filename   string `json:"filename"`
	Category   string `json:"category"`
	ChunkIndex int    `json:"chunk_index"`
}

// LoadJSON reads a JSON array of {id, content, filename, category, chunk_index}.
func (s *Store) LoadJSON(r io.Reader) error {
	var rows []fileRecord
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return fmt.Errorf("decode corpus: %w", err)
	}
	records := make([]retrieval.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, retrieval.Record{
			ID:         row.ID,
			Content:    row.Content,
			Filename:   row.Filename,
			Category:   content.Category(strings.ToUpper(row.Category)),
			ChunkIndex: row.ChunkIndex,
		})
	}
	s.Add(records...)
	return nil
}

// Lookup implements retrieval.Store.
func (s *Store) Lookup(ctx context.Context, q retrieval.Lookup) ([]retrieval.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn := strings.ToLower(q.FilenameLike)
	ct := strings.ToLower(q.ContentLike)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	out := make([]retrieval.Record, 0)
	for i := 0; i < n; i++ {
		idx := i
		if q.Descending {
			idx = n - 1 - i
		}
		r := s.records[idx]
		if fn != "" && !strings.Contains(strings.ToLower(r.Filename), fn) {
			continue
		}
		if ct != "" && !strings.Contains(strings.ToLower(r.Content), ct) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
