package validator

import (
	"fmt"
	"strings"

	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/middleware"
)

// ValidatorFunc validates a prompt before it is sent.
type ValidatorFunc func(string) error

// FilterFunc inspects or rewrites a response.
type FilterFunc func(string) (string, error)

// TokenCounter counts prompt tokens.
type TokenCounter interface {
	CountTokens(text string) int
}

// InputValidator rejects prompts before they reach the backend.
type InputValidator struct {
	validator ValidatorFunc
}

// NewInputValidator creates an input validation middleware
func NewInputValidator(validator ValidatorFunc) *InputValidator {
	return &InputValidator{validator: validator}
}

// Name returns the middleware name
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Execute validates the prompt
func (m *InputValidator) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.validator != nil {
		if err := m.validator(ctx.Prompt); err != nil {
			return err
		}
	}
	return next(ctx)
}

// ResponseFilter post-processes the response text.
type ResponseFilter struct {
	filter FilterFunc
}

// NewResponseFilter creates a response filtering middleware
func NewResponseFilter(filter FilterFunc) *ResponseFilter {
	return &ResponseFilter{filter: filter}
}

// Name returns the middleware name
func (m *ResponseFilter) Name() string {
	return "ResponseFilter"
}

// Execute filters the response
func (m *ResponseFilter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if err := next(ctx); err != nil {
		return err
	}
	if m.filter == nil {
		return nil
	}
	out, err := m.filter(ctx.Response)
	if err != nil {
		return err
	}
	ctx.Response = out
	return nil
}

// NonEmptyPrompt rejects blank prompts.
func NonEmptyPrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: empty prompt", middleware.ErrInvalidInput)
	}
	return nil
}

// TokenBudget rejects prompts whose token count exceeds max.
func TokenBudget(counter TokenCounter, max int) ValidatorFunc {
	return func(prompt string) error {
		if counter == nil || max <= 0 {
			return nil
		}
		if n := counter.CountTokens(prompt); n > max {
			return fmt.Errorf("%w: prompt has %d tokens, budget is %d", middleware.ErrInvalidInput, n, max)
		}
		return nil
	}
}

// RequireText trims the response and fails on empty output.
func RequireText(resp string) (string, error) {
	trimmed := strings.TrimSpace(resp)
	if trimmed == "" {
		return "", serrors.ErrEmptyCompletion
	}
	return trimmed, nil
}

// All combines validators; the first failure wins.
func All(validators ...ValidatorFunc) ValidatorFunc {
	return func(prompt string) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v(prompt); err != nil {
				return err
			}
		}
		return nil
	}
}
