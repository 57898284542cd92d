package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span wraps a trace.Span and batches its attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operation on t. A nil t uses Tracer().
func StartSpan(ctx context.Context, t trace.Tracer, operation string) (context.Context, *Span) {
	if t == nil {
		t = Tracer()
	}
	ctx, span := t.Start(ctx, operation)
	return ctx, &Span{span: span, startTime: time.Now()}
}

// SetAttribute adds an attribute to the span (batched for performance)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Elapsed returns the time since the span started.
func (s *Span) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// End records err, if any, as the span status and ends the span.
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// TraceBatch runs fn inside a span carrying the batch size and, on
// success, its throughput in rows per second.
func TraceBatch(ctx context.Context, t trace.Tracer, operation string, rows int, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, t, operation)
	span.SetAttribute("batch.rows", rows)

	err := fn(ctx)
	if err == nil {
		if secs := span.Elapsed().Seconds(); secs > 0 {
			span.SetAttribute("batch.throughput", float64(rows)/secs)
		}
	}
	span.End(err)
	return err
}
