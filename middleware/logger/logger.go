package logger

import (
	"log/slog"
	"time"

	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/middleware"
	"github.com/sweetpotato0/studygen/pkg/logging"
)

// CallLogger records every completion call with its latency.
type CallLogger struct {
	logger *slog.Logger
}

// NewCallLogger creates a logging middleware; nil uses the component logger.
func NewCallLogger(logger *slog.Logger) *CallLogger {
	if logger == nil {
		logger = logging.WithComponent("llm")
	}
	return &CallLogger{logger: logger}
}

// Name returns the middleware name
func (m *CallLogger) Name() string {
	return "CallLogger"
}

// Execute logs the call outcome.
func (m *CallLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	start := time.Now()
	role := llm.RoleFrom(ctx.Context())
	m.logger.Debug("completion started",
		"role", role,
		"prompt_chars", len(ctx.Prompt),
		"temperature", ctx.Options.Temperature,
		"max_tokens", ctx.Options.MaxTokens,
	)
	err := next(ctx)
	if err != nil {
		m.logger.Warn("completion failed", "role", role, "duration", time.Since(start), "error", err)
		return err
	}
	m.logger.Info("completion finished",
		"role", role,
		"duration", time.Since(start),
		"response_chars", len(ctx.Response),
	)
	return nil
}
