package logger

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/shredder/pkg/document"
	"github.com/ajitpratap0/shredder/pkg/shred"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewDefaultsEncoding(t *testing.T) {
	l, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx := context.WithValue(context.Background(), RunIDKey, "run-1")
	ctx = context.WithValue(ctx, SourceKey, "dump.bson")
	WithContext(ctx, zap.New(core)).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "dump.bson", fields["source"])
	assert.NotContains(t, fields, "sink")
}

func TestWithContextFallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := globalLogger
	globalLogger = zap.New(core)
	t.Cleanup(func() { globalLogger = prev })

	ctx := context.WithValue(context.Background(), SinkKey, "parquet")
	WithContext(ctx, nil).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "parquet", logs.All()[0].ContextMap()["sink"])
	assert.Same(t, globalLogger, Get())
}

func TestFieldTracer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := NewFieldTracer(zap.New(core))

	b, err := shred.New([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true},
	}, 1, shred.WithTracer(tracer))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.ProjectAndAppend(document.D{
		{Key: "a", Value: document.Int64(1)},
		{Key: "x", Value: document.Int64(2)},
	}))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "shred", entries[0].LoggerName)
	assert.Equal(t, "append", entries[0].ContextMap()["action"])
	assert.Equal(t, "x", entries[1].ContextMap()["path"])
	assert.Equal(t, int64(-1), entries[1].ContextMap()["column"])
	assert.Equal(t, "null_fill", entries[2].ContextMap()["action"])
}

func TestFieldTracerSilentAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewFieldTracer(zap.New(core)).TraceField("a", 0, shred.ActionAppend)
	assert.Equal(t, 0, logs.Len())
}
