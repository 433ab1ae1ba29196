package enricher

import (
	"context"
	"testing"

	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/middleware"
)

func TestForceJSONFor(t *testing.T) {
	m := NewContextEnricher(ForceJSONFor("strategist"))

	ctx := middleware.NewContext(llm.WithRole(context.Background(), "strategist"), "p", llm.Options{})
	var seen llm.Options
	if err := m.Execute(ctx, func(c *middleware.Context) error { seen = c.Options; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen.ForceJSON {
		t.Fatal("expected ForceJSON for strategist")
	}
	if ctx.Metadata["role"] != "strategist" {
		t.Fatalf("role metadata missing: %v", ctx.Metadata)
	}

	other := middleware.NewContext(llm.WithRole(context.Background(), "planner"), "p", llm.Options{})
	_ = m.Execute(other, func(c *middleware.Context) error { seen = c.Options; return nil })
	if seen.ForceJSON {
		t.Fatal("planner calls should not be forced to JSON")
	}
}
