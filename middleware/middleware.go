package middleware

import (
	"context"

	"github.com/sweetpotato0/studygen/llm"
)

// Context carries one completion call through the middleware chain
type Context struct {
	// Prompt sent to the backend
	Prompt string

	// Options for the call
	Options llm.Options

	// Response text from the backend
	Response string

	// Metadata for passing data between middlewares
	Metadata map[string]any

	context context.Context
}

// NewContext creates a new middleware context
func NewContext(ctx context.Context, prompt string, opts llm.Options) *Context {
	return &Context{
		Prompt:   prompt,
		Options:  opts,
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context
func (c *Context) Context() context.Context {
	if c.context == nil {
		return context.Background()
	}
	return c.context
}

// Middleware intercepts completion calls.
type Middleware interface {
	// Name returns the name of the middleware for logging and debugging
	Name() string

	// Execute runs the middleware logic. Returning an error stops the chain.
	Execute(ctx *Context, next Handler) error
}

// Handler is the function called to pass control to the next middleware
type Handler func(*Context) error

// MiddlewareChain represents a sequence of middleware to be executed
type MiddlewareChain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{
		middlewares: middlewares,
	}
}

// Add appends a middleware to the chain
func (c *MiddlewareChain) Add(m Middleware) *MiddlewareChain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Len reports the number of middlewares.
func (c *MiddlewareChain) Len() int {
	return len(c.middlewares)
}

// Execute runs all middlewares in the chain
func (c *MiddlewareChain) Execute(ctx *Context, finalHandler Handler) error {
	return c.executeMiddleware(ctx, 0, finalHandler)
}

func (c *MiddlewareChain) executeMiddleware(ctx *Context, index int, finalHandler Handler) error {
	if index >= len(c.middlewares) {
		return finalHandler(ctx)
	}
	nextHandler := func(ctx *Context) error {
		return c.executeMiddleware(ctx, index+1, finalHandler)
	}
	return c.middlewares[index].Execute(ctx, nextHandler)
}

// Completer runs every call to the wrapped backend through a chain.
type Completer struct {
	next  llm.Completer
	chain *MiddlewareChain
}

// Wrap decorates next with the given middlewares, outermost first.
func Wrap(next llm.Completer, middlewares ...Middleware) *Completer {
	return &Completer{next: next, chain: NewChain(middlewares...)}
}

// Complete implements llm.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	mctx := NewContext(ctx, prompt, opts)
	err := c.chain.Execute(mctx, func(mc *Context) error {
		out, err := c.next.Complete(mc.Context(), mc.Prompt, mc.Options)
		if err != nil {
			return err
		}
		mc.Response = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return mctx.Response, nil
}
