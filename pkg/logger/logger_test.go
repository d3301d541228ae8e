package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "retailledger/internal/core/context"
)

func TestHelpersEnrichFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "user-1"})

	Info(ctx, "sale created", "total", "200")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "200", fields["total"])
}

func TestHelpersWithoutRequestValues(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := WithLogger(context.Background(), &Logger{zap.New(core).Sugar()})

	Debug(ctx, "dropped")
	Warn(ctx, "unit mismatch", "unit", "box")

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "user_id")
}
