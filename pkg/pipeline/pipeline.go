package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/logger"
	"github.com/ajitpratap0/shredder/pkg/metrics"
	"github.com/ajitpratap0/shredder/pkg/observability"
	"github.com/ajitpratap0/shredder/pkg/shred"
	"github.com/ajitpratap0/shredder/pkg/sink"
	"github.com/ajitpratap0/shredder/pkg/source"
)

// Mode selects how documents are appended.
type Mode string

const (
	// ModeProject drops keys that are not in the schema
	ModeProject Mode = "project"
	// ModeStrict rejects documents with keys that are not in the schema
	ModeStrict Mode = "strict"
)

const (
	// RunSpanName names the span around a whole run
	RunSpanName = "shred.run"
	// FlushSpanName names the span around every batch write
	FlushSpanName = "shred.flush"
)

// Config contains pipeline configuration parameters.
type Config struct {
	BatchSize   int   // Rows per record batch
	Mode        Mode  // project or strict
	FailFast    bool  // Stop at the first rejected document
	MaxRejected int64 // Stop once more documents than this are rejected; 0 disables

	// ShredOptions are passed to every batch builder
	ShredOptions []shred.Option
	// Metrics receives progress; nil disables metrics
	Metrics *metrics.Collector
	// Tracer for flush spans; nil uses observability.Tracer()
	Tracer trace.Tracer
}

// DefaultConfig returns a projecting pipeline with 10000-row batches.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: 10000,
		Mode:      ModeProject,
	}
}

// Stats summarizes a run.
type Stats struct {
	RunID        string        // Taken from the context or generated
	Documents    int64         // Documents read from the source
	Rejected     int64         // Documents that added no row
	Rows         int64         // Rows written to the sink
	Batches      int64         // Batches written to the sink
	BytesWritten int64         // Bytes the sink reported writing
	Duration     time.Duration // Wall time of Run
}

// Pipeline moves documents from a source to a sink.
type Pipeline struct {
	source source.Source
	sink   sink.Sink
	fields []arrow.Field
	config Config
	logger *zap.Logger

	newBuilder func([]arrow.Field, int, ...shred.Option) (*shred.RecordStructBuilder, error)

	// per run
	log   *zap.Logger
	span  *observability.Span
	stats Stats
}

// New creates a pipeline. A nil config uses DefaultConfig and a nil logger
// discards log output.
func New(src source.Source, dst sink.Sink, fields []arrow.Field, config *Config, log *zap.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg := *config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeProject
	}

	return &Pipeline{
		source:     src,
		sink:       dst,
		fields:     fields,
		config:     cfg,
		logger:     log,
		log:        log,
		newBuilder: shred.New,
	}
}

// Run reads the source to the end. It returns the stats gathered so far
// together with any error that stopped the run. The run ID is read from
// logger.RunIDKey in ctx; a new one is generated when it is missing.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	runID, _ := ctx.Value(logger.RunIDKey).(string)
	if runID == "" {
		runID = uuid.NewString()
		ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	}
	ctx = context.WithValue(ctx, logger.SourceKey, p.source.Name())
	ctx = context.WithValue(ctx, logger.SinkKey, string(p.sink.Format()))
	p.log = logger.WithContext(ctx, p.logger)
	p.stats = Stats{RunID: runID}

	ctx, p.span = observability.StartSpan(ctx, p.config.Tracer, RunSpanName)
	p.span.SetAttribute("run.id", runID)
	p.span.SetAttribute("run.mode", string(p.config.Mode))

	p.log.Info("starting pipeline",
		zap.Int("batch_size", p.config.BatchSize),
		zap.String("mode", string(p.config.Mode)),
		zap.Int("columns", len(p.fields)))

	err := p.run(ctx)
	p.stats.Duration = time.Since(start)
	p.stats.BytesWritten = p.sink.BytesWritten()

	p.span.SetAttribute("run.documents", p.stats.Documents)
	p.span.SetAttribute("run.rejected", p.stats.Rejected)
	p.span.SetAttribute("run.rows", p.stats.Rows)
	p.span.End(err)

	fields := []zap.Field{
		zap.Int64("documents", p.stats.Documents),
		zap.Int64("rejected", p.stats.Rejected),
		zap.Int64("rows", p.stats.Rows),
		zap.Int64("batches", p.stats.Batches),
		zap.Duration("duration", p.stats.Duration),
	}
	if err != nil {
		p.log.Error("pipeline stopped", append(fields, zap.Error(err))...)
		return p.stats, err
	}
	p.log.Info("pipeline completed", fields...)
	return p.stats, nil
}

func (p *Pipeline) run(ctx context.Context) error {
	b, err := p.newBatch()
	if err != nil {
		return err
	}
	// b is replaced after every flush and is nil if that fails; Release on a
	// finished builder is a no-op
	defer func() {
		if b != nil {
			b.Release()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		p.stats.Documents++

		if err := p.append(b, document.Raw(raw)); err != nil {
			if err := p.reject(err); err != nil {
				return err
			}
			continue
		}
		if p.config.Metrics != nil {
			p.config.Metrics.DocumentAccepted(string(p.config.Mode))
		}

		if b.Len() >= p.config.BatchSize {
			if err := p.flush(ctx, b); err != nil {
				return err
			}
			if b, err = p.newBatch(); err != nil {
				return err
			}
		}
	}

	if b.Len() > 0 {
		return p.flush(ctx, b)
	}
	return nil
}

func (p *Pipeline) newBatch() (*shred.RecordStructBuilder, error) {
	return p.newBuilder(p.fields, p.config.BatchSize, p.config.ShredOptions...)
}

func (p *Pipeline) append(b *shred.RecordStructBuilder, doc document.Document) error {
	if p.config.Mode == ModeStrict {
		return b.AppendRecord(doc)
	}
	return b.ProjectAndAppend(doc)
}

// reject accounts for a document that failed to shred and decides whether
// the run goes on.
func (p *Pipeline) reject(cause error) error {
	p.stats.Rejected++
	errType := shrederrors.TypeOf(cause)
	if p.config.Metrics != nil {
		p.config.Metrics.DocumentRejected(string(p.config.Mode), string(errType))
	}

	p.span.AddEvent("document.rejected",
		attribute.Int64("document", p.stats.Documents),
		attribute.String("error_type", string(errType)))
	p.log.Warn("rejected document",
		zap.Int64("document", p.stats.Documents),
		zap.String("error_type", string(errType)),
		zap.Error(cause))

	if p.config.FailFast {
		return shrederrors.Wrap(cause, errType, "document rejected").
			WithDetail("document", p.stats.Documents)
	}
	if p.config.MaxRejected > 0 && p.stats.Rejected > p.config.MaxRejected {
		return shrederrors.Newf(shrederrors.ErrorTypeValidation,
			"rejected %d documents, more than the limit of %d", p.stats.Rejected, p.config.MaxRejected).
			WithDetail("last_error", cause.Error())
	}
	return nil
}

func (p *Pipeline) flush(ctx context.Context, b *shred.RecordStructBuilder) error {
	timer := metrics.NewTimer()
	bytesBefore := p.sink.BytesWritten()

	rec, err := b.FinishRecord()
	if err != nil {
		return err
	}
	defer rec.Release()

	rows := rec.NumRows()
	err = observability.TraceBatch(ctx, p.config.Tracer, FlushSpanName, int(rows), func(context.Context) error {
		return p.sink.Write(rec)
	})
	if err != nil {
		return err
	}

	latency := timer.Stop()
	p.stats.Rows += rows
	p.stats.Batches++
	if p.config.Metrics != nil {
		p.config.Metrics.BatchFlushed(rows, p.sink.BytesWritten()-bytesBefore, latency)
	}

	p.log.Info("flushed batch",
		zap.Int64("batch", p.stats.Batches),
		zap.Int64("rows", rows),
		zap.Duration("latency", latency))
	return nil
}
