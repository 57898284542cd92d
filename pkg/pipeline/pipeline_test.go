package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/logger"
	"github.com/ajitpratap0/shredder/pkg/metrics"
	"github.com/ajitpratap0/shredder/pkg/shred"
	"github.com/ajitpratap0/shredder/pkg/sink"
	"github.com/ajitpratap0/shredder/pkg/source"
	"github.com/ajitpratap0/shredder/pkg/testutil"
)

var testFields = []arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
}

type sliceSource struct {
	docs []bson.Raw
	pos  int
}

func newSliceSource(t *testing.T, docs ...bson.D) *sliceSource {
	t.Helper()
	s := &sliceSource{}
	for _, d := range docs {
		raw, err := bson.Marshal(d)
		require.NoError(t, err)
		s.docs = append(s.docs, raw)
	}
	return s
}

func (s *sliceSource) Next(context.Context) (bson.Raw, error) {
	if s.pos == len(s.docs) {
		return nil, io.EOF
	}
	s.pos++
	return s.docs[s.pos-1], nil
}

func (s *sliceSource) Name() string { return "slice" }
func (s *sliceSource) Close() error { return nil }

type failingSink struct {
	sink.Sink
	err error
}

func (f *failingSink) Write(arrow.Record) error { return f.err }

func doc(id int64, name string) bson.D {
	return bson.D{{Key: "id", Value: id}, {Key: "name", Value: name}}
}

func jsonlSink(t *testing.T, buf *bytes.Buffer) sink.Sink {
	t.Helper()
	s, err := sink.New(buf, arrow.NewSchema(testFields, nil), sink.Config{Format: sink.JSONL})
	require.NoError(t, err)
	return s
}

func checkedOptions(t *testing.T) []shred.Option {
	t.Helper()
	return []shred.Option{shred.WithAllocator(testutil.CheckedAllocator(t))}
}

func TestRunBatchesDocuments(t *testing.T) {
	src := newSliceSource(t, doc(1, "a"), doc(2, "b"), doc(3, "c"), doc(4, "d"), doc(5, "e"))
	var buf bytes.Buffer
	dst := jsonlSink(t, &buf)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	p := New(src, dst, testFields, &Config{
		BatchSize:    2,
		ShredOptions: checkedOptions(t),
		Metrics:      m,
		Tracer:       tp.Tracer("test"),
	}, zap.NewNop())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, dst.Close())

	assert.Equal(t, int64(5), stats.Documents)
	assert.Equal(t, int64(0), stats.Rejected)
	assert.Equal(t, int64(5), stats.Rows)
	assert.Equal(t, int64(3), stats.Batches)
	assert.Equal(t, int64(buf.Len()), stats.BytesWritten)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `{"id":1,"name":"a"}`, lines[0])
	assert.Equal(t, `{"id":5,"name":"e"}`, lines[4])

	spans := rec.Ended()
	require.Len(t, spans, 4)
	run := spans[3]
	assert.Equal(t, RunSpanName, run.Name())
	for _, s := range spans[:3] {
		assert.Equal(t, FlushSpanName, s.Name())
		assert.Equal(t, run.SpanContext().SpanID(), s.Parent().SpanID())
	}

	want := `
# HELP shred_batches_total Total number of record batches written
# TYPE shred_batches_total counter
shred_batches_total 3
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(want), "shred_batches_total"))
}

func TestRunEmptySourceWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	p := New(newSliceSource(t), jsonlSink(t, &buf), testFields, nil, nil)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, Stats{RunID: stats.RunID, Duration: stats.Duration}, stats)
	assert.Zero(t, buf.Len())
}

func TestRunSkipsRejectedDocuments(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := newSliceSource(t,
		doc(1, "a"),
		bson.D{{Key: "name", Value: "no id"}},
		doc(3, "c"),
	)
	var buf bytes.Buffer
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	p := New(src, jsonlSink(t, &buf), testFields, &Config{
		BatchSize:    10,
		ShredOptions: checkedOptions(t),
		Tracer:       tp.Tracer("test"),
	}, zap.New(core))

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Documents)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(2), stats.Rows)

	require.Equal(t, 1, logs.FilterMessage("rejected document").Len())
	entry := logs.FilterMessage("rejected document").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, string(shrederrors.ErrorTypeNullViolation), fields["error_type"])
	assert.Equal(t, stats.RunID, fields["run_id"])
	assert.Equal(t, "slice", fields["source"])
	assert.Equal(t, "jsonl", fields["sink"])

	spans := rec.Ended()
	require.Len(t, spans, 2)
	run := spans[1]
	require.Equal(t, RunSpanName, run.Name())
	require.Len(t, run.Events(), 1)
	event := run.Events()[0]
	assert.Equal(t, "document.rejected", event.Name)
	assert.Contains(t, event.Attributes, attribute.Int64("document", 2))
	assert.Contains(t, event.Attributes,
		attribute.String("error_type", string(shrederrors.ErrorTypeNullViolation)))
}

func TestRunUsesRunIDFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var buf bytes.Buffer
	p := New(newSliceSource(t, doc(1, "a")), jsonlSink(t, &buf), testFields, &Config{
		ShredOptions: checkedOptions(t),
	}, zap.New(core))

	ctx := context.WithValue(context.Background(), logger.RunIDKey, "run-7")
	stats, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-7", stats.RunID)

	for _, entry := range logs.All() {
		assert.Equal(t, "run-7", entry.ContextMap()["run_id"], entry.Message)
	}
	assert.Equal(t, 1, logs.FilterMessage("pipeline completed").Len())
}

func TestRunReportsBuilderErrorsAfterFlush(t *testing.T) {
	src := newSliceSource(t, doc(1, "a"), doc(2, "b"), doc(3, "c"))
	var buf bytes.Buffer
	p := New(src, jsonlSink(t, &buf), testFields, &Config{
		BatchSize:    2,
		ShredOptions: checkedOptions(t),
	}, nil)

	boom := errors.New("out of memory")
	calls := 0
	p.newBuilder = func(fields []arrow.Field, capacity int, opts ...shred.Option) (*shred.RecordStructBuilder, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return shred.New(fields, capacity, opts...)
	}

	var (
		stats Stats
		err   error
	)
	require.NotPanics(t, func() { stats, err = p.Run(context.Background()) })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(2), stats.Rows)
}

func TestRunStrictModeRejectsUnknownKeys(t *testing.T) {
	src := newSliceSource(t,
		doc(1, "a"),
		bson.D{{Key: "id", Value: int64(2)}, {Key: "extra", Value: true}},
	)
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	var buf bytes.Buffer
	p := New(src, jsonlSink(t, &buf), testFields, &Config{
		Mode:         ModeStrict,
		ShredOptions: checkedOptions(t),
		Metrics:      m,
	}, nil)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Rows)
	assert.Equal(t, int64(1), stats.Rejected)

	want := `
# HELP shred_document_errors_total Total number of rejected documents by error type
# TYPE shred_document_errors_total counter
shred_document_errors_total{type="unknown_field"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(want), "shred_document_errors_total"))
}

func TestRunFailFast(t *testing.T) {
	src := newSliceSource(t, doc(1, "a"), bson.D{{Key: "name", Value: "no id"}}, doc(3, "c"))
	var buf bytes.Buffer

	p := New(src, jsonlSink(t, &buf), testFields, &Config{
		FailFast:     true,
		ShredOptions: checkedOptions(t),
	}, nil)

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shrederrors.ErrNullViolation))
	assert.Equal(t, int64(2), stats.Documents)
	assert.Equal(t, int64(0), stats.Rows)
	assert.Zero(t, buf.Len())
}

func TestRunMaxRejected(t *testing.T) {
	bad := bson.D{{Key: "name", Value: "no id"}}
	src := newSliceSource(t, bad, bad, bad, doc(4, "d"))
	var buf bytes.Buffer

	p := New(src, jsonlSink(t, &buf), testFields, &Config{
		MaxRejected:  2,
		ShredOptions: checkedOptions(t),
	}, nil)

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeValidation))
	assert.Equal(t, int64(3), stats.Rejected)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	p := New(newSliceSource(t, doc(1, "a")), jsonlSink(t, &buf), testFields, &Config{
		ShredOptions: checkedOptions(t),
	}, nil)

	stats, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), stats.Documents)
}

func TestRunPropagatesSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("disk full")
	dst := &failingSink{Sink: jsonlSink(t, &buf), err: boom}

	p := New(newSliceSource(t, doc(1, "a")), dst, testFields, &Config{
		ShredOptions: checkedOptions(t),
	}, nil)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunStopsOnFramingErrors(t *testing.T) {
	good, err := bson.Marshal(doc(1, "a"))
	require.NoError(t, err)
	stream := append(append([]byte{}, good...), 0x20, 0, 0) // truncated length prefix

	src := source.NewStreamSource("test", bytes.NewReader(stream), 0)
	var buf bytes.Buffer
	p := New(src, jsonlSink(t, &buf), testFields, &Config{
		ShredOptions: checkedOptions(t),
	}, nil)

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shrederrors.ErrMalformedDocument))
	assert.Equal(t, int64(1), stats.Documents)
	assert.Equal(t, int64(0), stats.Rows)
}
