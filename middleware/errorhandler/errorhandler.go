package errorhandler

import (
	"context"
	"errors"
	"fmt"

	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/middleware"
)

// ErrorHandlerFunc rewrites an error returned further down the chain.
type ErrorHandlerFunc func(error) error

// ErrorHandler handles errors in the middleware chain
type ErrorHandler struct {
	handler ErrorHandlerFunc
}

// NewErrorHandler creates an error handling middleware
func NewErrorHandler(handler ErrorHandlerFunc) *ErrorHandler {
	return &ErrorHandler{handler: handler}
}

// Name returns the middleware name
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Execute handles errors from downstream middlewares
func (m *ErrorHandler) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if err != nil && m.handler != nil {
		return m.handler(err)
	}
	return err
}

// Classify tags cancellations with ErrCancelled and labels everything else
// with the provider name.
func Classify(provider string) ErrorHandlerFunc {
	return func(err error) error {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", serrors.ErrCancelled, err)
		}
		return fmt.Errorf("%s completion: %w", provider, err)
	}
}
