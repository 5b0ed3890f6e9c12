package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func spanContext(t *testing.T) (context.Context, trace.SpanContext) {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	assert.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	assert.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-123")
	l.Info("x")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	entries := recorded.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	ctx, sc := spanContext(t)
	assert.Equal(t, sc.TraceID().String(), GetTraceID(ctx))
}

func TestContextLogger(t *testing.T) {
	t.Run("adds trace, request and draft ids", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		ctx, _ := spanContext(t)
		ctx, _ = WithRequestID(ctx, zap.New(core), "req-9")
		ctx = WithDraftID(ctx, "draft-1")

		L(ctx).Warn("stale")

		entries := recorded.All()
		assert.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "draft-1", fields["draft_id"])
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("explicit logger gets request id from context", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		ctx := context.WithValue(context.Background(), requestIDKey, "req-7")

		WithLogger(ctx, zap.New(core)).Info("hello")

		assert.Equal(t, "req-7", recorded.All()[0].ContextMap()["request_id"])
	})

	t.Run("no logger in context is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() {
			L(context.Background()).Error("nothing")
		})
	})
}
