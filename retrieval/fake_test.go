package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// fakeStore filters records the way the SQL stores do and records every lookup.
type fakeStore struct {
	mu      sync.Mutex
	records []Record
	lookups []Lookup
	err     error
}

func (f *fakeStore) Lookup(ctx context.Context, q Lookup) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []Record
	n := len(f.records)
	for i := 0; i < n; i++ {
		r := f.records[i]
		if q.Descending {
			r = f.records[n-1-i]
		}
		if q.FilenameLike != "" && !strings.Contains(strings.ToLower(r.Filename), strings.ToLower(q.FilenameLike)) {
			continue
		}
		if q.ContentLike != "" && !strings.Contains(strings.ToLower(r.Content), strings.ToLower(q.ContentLike)) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

var errStoreDown = errors.New("store down")
