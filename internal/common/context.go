package common

import (
	"context"
	"log/slog"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyStatementID contextKey = "statement_id"
	ContextKeyRunID       contextKey = "run_id"
)

// WithRun tags ctx with the statement and run being processed.
func WithRun(ctx context.Context, statementID, runID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyStatementID, statementID)
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunFromContext returns the statement and run ids set by WithRun.
func RunFromContext(ctx context.Context) (statementID, runID string) {
	statementID, _ = ctx.Value(ContextKeyStatementID).(string)
	runID, _ = ctx.Value(ContextKeyRunID).(string)
	return statementID, runID
}

// RunLogger returns logger tagged with the run ids on ctx, or logger itself when ctx
// carries none.
func RunLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	statementID, runID := RunFromContext(ctx)
	if statementID == "" {
		return logger
	}
	return logger.With("statement_id", statementID, "run_id", runID)
}

// WithTimeout creates a context with the specified timeout. A non-positive timeout
// returns the parent unchanged with a no-op cancel.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}
