// Package sink writes shredded Arrow record batches to files.
//
// Four formats are supported:
//   - arrow: Arrow IPC file format (compression: none, lz4, zstd)
//   - parquet: Apache Parquet (compression: none, snappy, gzip, brotli, zstd, lz4)
//   - avro: Avro object container file (compression: none, deflate, snappy)
//   - jsonl: one JSON object per row (compression: any pkg/compression algorithm)
//
// Every sink checks that each record matches the schema it was created with.
// Close finishes the file format but leaves the wrapped writer open; sinks
// returned by Create also close their file.
package sink

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// Format represents an output file format
type Format string

const (
	// Arrow is the Arrow IPC file format
	Arrow Format = "arrow"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is the Avro object container format
	Avro Format = "avro"
	// JSONL is newline delimited JSON
	JSONL Format = "jsonl"
)

// Sink consumes record batches.
type Sink interface {
	// Write appends one batch. The caller keeps ownership of rec.
	Write(rec arrow.Record) error
	// Close writes any trailer the format needs
	Close() error
	// Format returns the output format
	Format() Format
	// RowsWritten returns rows written so far
	RowsWritten() int64
	// BytesWritten returns bytes handed to the underlying writer so far
	BytesWritten() int64
}

// Config configures a sink.
type Config struct {
	Format Format
	// Compression codec name; accepted values depend on Format
	Compression string
	// CompressionLevel for codecs that take one; 0 selects the codec default
	CompressionLevel int
	// Allocator for encoding buffers; nil selects the Go allocator
	Allocator memory.Allocator
	// RecordName names the Avro top-level record
	RecordName string
}

// New creates a sink writing schema-conforming batches to w.
func New(w io.Writer, schema *arrow.Schema, cfg Config) (Sink, error) {
	if schema == nil {
		return nil, shrederrors.New(shrederrors.ErrorTypeConfig, "sink requires a schema")
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	cfg.Compression = strings.ToLower(strings.TrimSpace(cfg.Compression))

	cw := &countingWriter{w: w}
	switch cfg.Format {
	case Arrow:
		return newArrowSink(cw, schema, cfg)
	case Parquet:
		return newParquetSink(cw, schema, cfg)
	case Avro:
		return newAvroSink(cw, schema, cfg)
	case JSONL:
		return newJSONLSink(cw, schema, cfg)
	default:
		return nil, shrederrors.Newf(shrederrors.ErrorTypeConfig, "unsupported output format: %s", cfg.Format)
	}
}

// Create opens path for writing and returns a sink over it. path "-"
// writes stdout.
func Create(path string, schema *arrow.Schema, cfg Config) (Sink, error) {
	if path == "-" {
		return New(os.Stdout, schema, cfg)
	}

	f, err := os.Create(path) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "create output").
			WithDetail("path", path)
	}
	s, err := New(f, schema, cfg)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &fileSink{Sink: s, f: f}, nil
}

type fileSink struct {
	Sink
	f *os.File
}

func (s *fileSink) Close() error {
	err := s.Sink.Close()
	if cerr := s.f.Close(); cerr != nil {
		err = errors.Join(err, shrederrors.Wrap(cerr, shrederrors.ErrorTypeFile, "close output"))
	}
	return err
}

// countingWriter tracks bytes handed to the wrapped writer. It deliberately
// has no Close so format writers cannot close the caller's stream.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// stats is embedded by every sink.
type stats struct {
	out    *countingWriter
	rows   int64
	schema *arrow.Schema
}

func (s *stats) RowsWritten() int64 {
	return s.rows
}

func (s *stats) BytesWritten() int64 {
	return s.out.n
}

func (s *stats) check(rec arrow.Record) error {
	if rec == nil {
		return shrederrors.New(shrederrors.ErrorTypeValidation, "nil record")
	}
	if !rec.Schema().Equal(s.schema) {
		return shrederrors.New(shrederrors.ErrorTypeValidation, "record schema does not match sink schema").
			WithDetail("want", s.schema.String()).
			WithDetail("got", rec.Schema().String())
	}
	return nil
}

func unsupportedCompression(format Format, codec string) error {
	return shrederrors.Newf(shrederrors.ErrorTypeConfig, "unsupported %s compression: %s", format, codec).
		WithDetail("format", string(format))
}
