package observability

import (
	"context"

	"go.uber.org/zap"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	loggerKey
)

// WithRequest returns ctx carrying the request's correlation ID and a logger
// already tagged with it.
func WithRequest(ctx context.Context, correlationID string, logger *zap.Logger) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey, correlationID)
	if logger != nil {
		ctx = WithLogger(ctx, logger)
	}
	return ctx
}

// WithLogger returns ctx carrying logger as the request-scoped logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFrom returns the request-scoped logger, or nil outside a request.
func LoggerFrom(ctx context.Context) *zap.Logger {
	l, _ := ctx.Value(loggerKey).(*zap.Logger)
	return l
}

// CorrelationID returns the request's correlation ID, or "" outside a
// request.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
