package enricher

import (
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/middleware"
)

// EnricherFunc adds data to the middleware context
type EnricherFunc func(*middleware.Context) error

// ContextEnricher adds additional data to the middleware context
type ContextEnricher struct {
	enricher EnricherFunc
}

// NewContextEnricher creates a context enriching middleware
func NewContextEnricher(enricher EnricherFunc) *ContextEnricher {
	return &ContextEnricher{enricher: enricher}
}

// Name returns the middleware name
func (m *ContextEnricher) Name() string {
	return "ContextEnricher"
}

// Execute enriches the context
func (m *ContextEnricher) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.enricher != nil {
		if err := m.enricher(ctx); err != nil {
			return err
		}
	}
	return next(ctx)
}

// ForceJSONFor switches on JSON mode for calls issued by the listed roles.
func ForceJSONFor(roles ...string) EnricherFunc {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return func(ctx *middleware.Context) error {
		role := llm.RoleFrom(ctx.Context())
		ctx.Metadata["role"] = role
		if _, ok := set[role]; ok {
			ctx.Options.ForceJSON = true
		}
		return nil
	}
}
