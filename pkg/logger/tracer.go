package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/shredder/pkg/shred"
)

// FieldTracer logs every per-field ingestion decision at debug level. It is
// meant for diagnosing schema mismatches on small inputs.
type FieldTracer struct {
	logger *zap.Logger
}

// NewFieldTracer returns a shred.Tracer writing to logger. A nil logger uses
// the global logger.
func NewFieldTracer(logger *zap.Logger) *FieldTracer {
	if logger == nil {
		logger = Get()
	}
	return &FieldTracer{logger: logger.Named("shred")}
}

// TraceField implements shred.Tracer.
func (t *FieldTracer) TraceField(path string, column int, action shred.Action) {
	if ce := t.logger.Check(zapcore.DebugLevel, "field"); ce != nil {
		ce.Write(
			zap.String("path", path),
			zap.Int("column", column),
			zap.Stringer("action", action),
		)
	}
}

var _ shred.Tracer = (*FieldTracer)(nil)
