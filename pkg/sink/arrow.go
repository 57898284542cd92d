package sink

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// arrowSink implements Sink for the Arrow IPC file format
type arrowSink struct {
	stats
	fw *ipc.FileWriter
}

func newArrowSink(w *countingWriter, schema *arrow.Schema, cfg Config) (*arrowSink, error) {
	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(cfg.Allocator)}
	switch cfg.Compression {
	case "", "none":
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	default:
		return nil, unsupportedCompression(Arrow, cfg.Compression)
	}

	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "create Arrow writer")
	}
	return &arrowSink{stats: stats{out: w, schema: schema}, fw: fw}, nil
}

func (s *arrowSink) Write(rec arrow.Record) error {
	if err := s.check(rec); err != nil {
		return err
	}
	if err := s.fw.Write(rec); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "write Arrow record batch")
	}
	s.rows += rec.NumRows()
	return nil
}

func (s *arrowSink) Close() error {
	if err := s.fw.Close(); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "close Arrow writer")
	}
	return nil
}

func (s *arrowSink) Format() Format {
	return Arrow
}
