package orchestrator

import (
	"context"
	"errors"
	"testing"

	serrors "github.com/sweetpotato0/studygen/errors"
)

func TestRegistryAcquireReplacesPrior(t *testing.T) {
	r := NewRegistry()
	key := Key{UserID: "u1", TopicID: "t1"}

	first, h1 := r.Acquire(context.Background(), key)
	second, h2 := r.Acquire(context.Background(), key)
	defer h2.Release()

	if !errors.Is(context.Cause(first), errReplaced) {
		t.Fatalf("first run cause = %v, want superseded", context.Cause(first))
	}
	if second.Err() != nil {
		t.Fatalf("second run cancelled: %v", second.Err())
	}

	// Releasing the replaced run must not evict its successor.
	h1.Release()
	if r.Len() != 1 {
		t.Fatalf("expected successor to stay registered, got %d entries", r.Len())
	}
}

func TestRegistryCancelAndRelease(t *testing.T) {
	r := NewRegistry()
	key := Key{UserID: "u1", TopicID: "t1"}
	ctx, h := r.Acquire(context.Background(), key)

	if !r.Cancel(key) {
		t.Fatal("expected cancel to signal the run")
	}
	if !errors.Is(context.Cause(ctx), serrors.ErrCancelled) {
		t.Fatalf("cause = %v", context.Cause(ctx))
	}
	if h.Commit() {
		t.Fatal("commit succeeded after cancel")
	}

	h.Release()
	h.Release()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
	if r.Cancel(key) {
		t.Fatal("cancel after release reported a run")
	}
}

func TestRegistryCommitIgnoresCancel(t *testing.T) {
	r := NewRegistry()
	key := Key{UserID: "u1", TopicID: "t1"}
	ctx, h := r.Acquire(context.Background(), key)
	defer h.Release()

	if !h.Commit() {
		t.Fatal("commit failed on a live run")
	}
	if r.Cancel(key) {
		t.Fatal("cancel affected a committed run")
	}
	if ctx.Err() != nil {
		t.Fatalf("committed run cancelled: %v", ctx.Err())
	}
}

func TestRegistryCancelTopicAcrossUsers(t *testing.T) {
	r := NewRegistry()
	a, ha := r.Acquire(context.Background(), Key{UserID: "u1", TopicID: "t1"})
	b, hb := r.Acquire(context.Background(), Key{UserID: "u2", TopicID: "t1"})
	c, hc := r.Acquire(context.Background(), Key{UserID: "u1", TopicID: "t2"})
	defer ha.Release()
	defer hb.Release()
	defer hc.Release()

	if n := r.CancelTopic("t1"); n != 2 {
		t.Fatalf("cancelled %d runs, want 2", n)
	}
	if a.Err() == nil || b.Err() == nil {
		t.Fatal("expected both t1 runs cancelled")
	}
	if c.Err() != nil {
		t.Fatal("t2 run should be unaffected")
	}
}
