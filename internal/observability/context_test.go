package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestWithRequest(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithRequest(context.Background(), "req-1", logger)

	if got := CorrelationID(ctx); got != "req-1" {
		t.Errorf("CorrelationID() = %q, want req-1", got)
	}
	if got := LoggerFrom(ctx); got != logger {
		t.Errorf("LoggerFrom() = %p, want %p", got, logger)
	}
}

func TestRequestContext_Absent(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("CorrelationID() = %q, want empty", got)
	}
	if got := LoggerFrom(ctx); got != nil {
		t.Errorf("LoggerFrom() = %v, want nil", got)
	}
	// Plain string keys must not collide with the typed ones.
	ctx = context.WithValue(ctx, "logger", zap.NewNop())
	if LoggerFrom(ctx) != nil {
		t.Error("LoggerFrom() read a string-keyed value")
	}
}

func TestWithRequest_NilLogger(t *testing.T) {
	ctx := WithRequest(context.Background(), "req-2", nil)
	if LoggerFrom(ctx) != nil {
		t.Error("LoggerFrom() after nil logger should be nil")
	}
	if CorrelationID(ctx) != "req-2" {
		t.Errorf("CorrelationID() = %q, want req-2", CorrelationID(ctx))
	}
}
