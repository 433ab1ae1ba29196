package middleware

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sweetpotato0/studygen/llm"
)

type recorder struct {
	name  string
	trace *[]string
}

func (r recorder) Name() string { return r.name }

func (r recorder) Execute(ctx *Context, next Handler) error {
	*r.trace = append(*r.trace, r.name+":before")
	err := next(ctx)
	*r.trace = append(*r.trace, r.name+":after")
	return err
}

type rewrite struct{}

func (rewrite) Name() string { return "rewrite" }

func (rewrite) Execute(ctx *Context, next Handler) error {
	ctx.Prompt = "rewritten"
	ctx.Options.MaxTokens = 42
	return next(ctx)
}

type stop struct{ err error }

func (s stop) Name() string { return "stop" }
func (s stop) Execute(*Context, Handler) error { return s.err }

func TestChainOrder(t *testing.T) {
	var trace []string
	chain := NewChain(recorder{"a", &trace}).Add(recorder{"b", &trace})
	if chain.Len() != 2 {
		t.Fatalf("expected 2 middlewares, got %d", chain.Len())
	}
	err := chain.Execute(NewContext(context.Background(), "p", llm.Options{}), func(*Context) error {
		trace = append(trace, "final")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a:before", "b:before", "final", "b:after", "a:after"}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
}

func TestWrapPassesRewrittenCall(t *testing.T) {
	var gotPrompt string
	var gotOpts llm.Options
	backend := llm.CompleterFunc(func(_ context.Context, prompt string, opts llm.Options) (string, error) {
		gotPrompt, gotOpts = prompt, opts
		return "answer", nil
	})

	out, err := Wrap(backend, rewrite{}).Complete(context.Background(), "original", llm.Options{Temperature: 0.3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer" || gotPrompt != "rewritten" || gotOpts.MaxTokens != 42 || gotOpts.Temperature != 0.3 {
		t.Fatalf("unexpected call: out=%q prompt=%q opts=%+v", out, gotPrompt, gotOpts)
	}
}

func TestWrapStopsOnMiddlewareError(t *testing.T) {
	called := false
	backend := llm.CompleterFunc(func(context.Context, string, llm.Options) (string, error) {
		called = true
		return "", nil
	})
	_, err := Wrap(backend, stop{ErrInvalidInput}).Complete(context.Background(), "p", llm.Options{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Fatal("backend must not be called")
	}
}

func TestWrapReturnsBackendError(t *testing.T) {
	boom := errors.New("boom")
	backend := llm.CompleterFunc(func(context.Context, string, llm.Options) (string, error) {
		return "", boom
	})
	if _, err := Wrap(backend).Complete(context.Background(), "p", llm.Options{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
