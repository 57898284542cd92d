package main

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ajitpratap0/shredder/pkg/config"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/logger"
	"github.com/ajitpratap0/shredder/pkg/metrics"
	"github.com/ajitpratap0/shredder/pkg/observability"
	"github.com/ajitpratap0/shredder/pkg/pipeline"
	"github.com/ajitpratap0/shredder/pkg/shred"
	"github.com/ajitpratap0/shredder/pkg/sink"
	"github.com/ajitpratap0/shredder/pkg/source"
)

// runPipeline executes the pipeline described by cfg. cfg must be valid.
func runPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (pipeline.Stats, error) {
	var stats pipeline.Stats
	log = log.With(zap.String("component", "shred-cli"), zap.String("pipeline", cfg.Name))

	fields, err := cfg.Fields()
	if err != nil {
		return stats, err
	}
	opts, err := shredOptions(cfg, log)
	if err != nil {
		return stats, err
	}

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Observability.EnableTracing,
		ServiceName:    "shred",
		ServiceVersion: version,
		Environment:    cfg.Name,
		SamplingRate:   cfg.Observability.TracingSampleRate,
	})
	if err != nil {
		return stats, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("failed to shutdown tracing", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)
	if cfg.Observability.HasMetrics() {
		if _, err := metrics.Serve(ctx, cfg.Observability.MetricsAddr, reg, log); err != nil {
			return stats, err
		}
	}

	src, err := openSource(ctx, cfg, fields, log)
	if err != nil {
		return stats, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	dst, err := sink.Create(cfg.Output.Path, arrow.NewSchema(fields, nil), sink.Config{
		Format:           sink.Format(cfg.Output.Format),
		Compression:      cfg.Output.Compression,
		CompressionLevel: cfg.Output.CompressionLevel,
	})
	if err != nil {
		return stats, err
	}

	mode := pipeline.ModeProject
	if cfg.Ingest.IsStrict() {
		mode = pipeline.ModeStrict
	}
	p := pipeline.New(src, dst, fields, &pipeline.Config{
		BatchSize:    cfg.Batch.Size,
		Mode:         mode,
		FailFast:     cfg.Reliability.FailFast,
		MaxRejected:  cfg.Reliability.MaxRejected,
		ShredOptions: opts,
		Metrics:      collector,
		Tracer:       observability.Tracer(),
	}, log)

	stats, runErr := p.Run(ctx)

	// The sink is closed even after a failed run so the output stays readable
	if err := dst.Close(); err != nil {
		if runErr != nil {
			log.Warn("failed to close sink", zap.Error(err))
			return stats, runErr
		}
		return stats, err
	}
	return stats, runErr
}

func shredOptions(cfg *config.Config, log *zap.Logger) ([]shred.Option, error) {
	opts, err := cfg.Ingest.Options()
	if err != nil {
		return nil, err
	}
	if cfg.Batch.ValueSizeHint > 0 {
		opts = append(opts, shred.WithValueSizeHint(cfg.Batch.ValueSizeHint))
	}
	if cfg.Ingest.TraceFields {
		opts = append(opts, shred.WithTracer(logger.NewFieldTracer(log)))
	}
	return opts, nil
}

func openSource(ctx context.Context, cfg *config.Config, fields []arrow.Field, log *zap.Logger) (source.Source, error) {
	in := cfg.Input
	switch in.Type {
	case "file":
		if in.Mmap {
			src, err := source.OpenMapped(in.Path, in.MaxDocumentSize)
			if err != nil {
				return nil, err
			}
			log.Debug("memory-mapped input", zap.String("path", in.Path))
			return src, nil
		}
		src, err := source.OpenFile(in.Path, in.Compression, in.MaxDocumentSize)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "mongodb":
		filter, err := source.ParseFilter(in.Filter)
		if err != nil {
			return nil, err
		}
		src, err := source.NewCollectionSource(ctx, source.CollectionConfig{
			URI:            in.URI,
			Database:       in.Database,
			Collection:     in.Collection,
			Filter:         filter,
			Projection:     source.BuildProjection(fields),
			BatchSize:      in.CursorBatchSize,
			ConnectTimeout: in.ConnectTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, shrederrors.Newf(shrederrors.ErrorTypeConfig, "input.type %q: want file or mongodb", in.Type)
}
