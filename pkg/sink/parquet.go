package sink

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// parquetSink implements Sink for Parquet. Each batch becomes one row group.
type parquetSink struct {
	stats
	fw *pqarrow.FileWriter
}

func newParquetSink(w *countingWriter, schema *arrow.Schema, cfg Config) (*parquetSink, error) {
	codec, err := parquetCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	opts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithAllocator(cfg.Allocator),
		parquet.WithCreatedBy("shredder"),
	}
	if cfg.CompressionLevel != 0 {
		opts = append(opts, parquet.WithCompressionLevel(cfg.CompressionLevel))
	}
	props := parquet.NewWriterProperties(opts...)

	// the stored schema restores large and timezone types on read
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(cfg.Allocator),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "create Parquet writer")
	}
	return &parquetSink{stats: stats{out: w, schema: schema}, fw: fw}, nil
}

func (s *parquetSink) Write(rec arrow.Record) error {
	if err := s.check(rec); err != nil {
		return err
	}
	if rec.NumRows() == 0 {
		return nil
	}
	if err := s.fw.Write(rec); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "write Parquet row group")
	}
	s.rows += rec.NumRows()
	return nil
}

func (s *parquetSink) Close() error {
	if err := s.fw.Close(); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "close Parquet writer")
	}
	return nil
}

func (s *parquetSink) Format() Format {
	return Parquet
}

func parquetCompression(name string) (compress.Compression, error) {
	switch name {
	case "", "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, unsupportedCompression(Parquet, name)
	}
}
