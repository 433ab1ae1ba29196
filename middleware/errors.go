package middleware

import "errors"

var (
	// ErrRateLimitExceeded indicates the limiter could not grant a slot
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates prompt validation failed
	ErrInvalidInput = errors.New("invalid input")
)
