package limiter

import (
	"fmt"
	"time"

	"github.com/sweetpotato0/studygen/middleware"
	"golang.org/x/time/rate"
)

// RateLimiter throttles completion calls with a token bucket shared by every
// caller of the wrapped backend.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perMinute calls per minute with the given burst.
// A non-positive perMinute disables throttling.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Name returns the middleware name
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute waits for a slot or gives up when the call context ends.
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if err := m.limiter.Wait(ctx.Context()); err != nil {
		return fmt.Errorf("%w: %w", middleware.ErrRateLimitExceeded, err)
	}
	return next(ctx)
}

// Tokens reports the currently available burst.
func (m *RateLimiter) Tokens() float64 {
	return m.limiter.Tokens()
}
