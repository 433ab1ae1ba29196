// Package llm defines the contract of the generative-text backend.
package llm

import "context"

// Options tunes a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
	ForceJSON   bool // ask the backend for a JSON object response
}

// Completer turns a prompt into text. Implementations are stateless per
// call and must honor ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

type roleKey struct{}

// WithRole tags ctx with the pipeline role issuing the completion.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFrom returns the role stored by WithRole, or "".
func RoleFrom(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
