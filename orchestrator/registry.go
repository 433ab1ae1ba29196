package orchestrator

import (
	"context"
	"fmt"
	"sync"

	serrors "github.com/sweetpotato0/studygen/errors"
)

var (
	errReplaced = fmt.Errorf("superseded by a newer request: %w", serrors.ErrCancelled)
	errTimeout  = fmt.Errorf("pipeline timeout: %w", serrors.ErrCancelled)
)

// Key identifies a cache slot and therefore an in-flight run.
type Key struct {
	UserID  string
	TopicID string
}

type entry struct {
	ctx       context.Context
	cancel    context.CancelCauseFunc
	committed bool
}

// Registry holds the cancel handle of every in-flight run. At most one run
// is registered per key; registering a new one cancels the old.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]*entry)}
}

// Handle is a run's membership in the registry.
type Handle struct {
	r   *Registry
	key Key
	e   *entry
}

// Acquire registers a run for key and returns its cancellable context.
// Any prior uncommitted run for the key is cancelled.
func (r *Registry) Acquire(parent context.Context, key Key) (context.Context, *Handle) {
	ctx, cancel := context.WithCancelCause(parent)
	e := &entry{ctx: ctx, cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.entries[key]; ok && !prev.committed {
		prev.cancel(errReplaced)
	}
	r.entries[key] = e
	r.mu.Unlock()
	return ctx, &Handle{r: r, key: key, e: e}
}

// Commit marks the run as past the point of no return. It fails if the run
// was cancelled first; afterwards Cancel no longer affects it.
func (h *Handle) Commit() bool {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	if context.Cause(h.e.ctx) != nil {
		return false
	}
	h.e.committed = true
	return true
}

// Release evicts the run if it is still the registered one and frees its
// context. Safe to call more than once.
func (h *Handle) Release() {
	h.r.mu.Lock()
	if cur, ok := h.r.entries[h.key]; ok && cur == h.e {
		delete(h.r.entries, h.key)
	}
	h.r.mu.Unlock()
	h.e.cancel(context.Canceled)
}

// Cancel stops the run registered for key. It reports whether a run was
// signalled; cancelling nothing is not an error.
func (r *Registry) Cancel(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok || e.committed {
		return false
	}
	e.cancel(serrors.ErrCancelled)
	return true
}

// CancelTopic stops every run for topicID regardless of user.
func (r *Registry) CancelTopic(topicID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.entries {
		if key.TopicID == topicID && !e.committed {
			e.cancel(serrors.ErrCancelled)
			n++
		}
	}
	return n
}

// Len returns the number of registered runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
