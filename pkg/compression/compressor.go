// Package compression wraps input and output streams with the codecs a
// BSON dump or a JSON lines export is commonly stored in.
//
// # Overview
//
// The compression package provides:
//   - Streaming readers and writers for Gzip, Snappy, LZ4, Zstd and S2
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Codec detection from file extensions and magic bytes
//
// # Basic Usage
//
//	// Open a dump whose codec is unknown
//	br := bufio.NewReader(f)
//	alg, err := compression.Detect(br)
//	r, err := compression.NewReader(br, alg)
//	defer r.Close()
//
//	// Write a compressed stream
//	w, err := compression.NewWriter(out, compression.Zstd, compression.Best)
//	defer w.Close()
//
// Closing a reader or writer never closes the wrapped stream.
//
// # Algorithm Selection
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd > Gzip
// Compression ratio (best to worst): Zstd > Gzip > Snappy/S2 > LZ4
package compression

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents framed s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// magic numbers of the framed formats; snappy and s2 share the stream
// identifier chunk header and differ in the identifier text
var magics = []struct {
	alg    Algorithm
	prefix []byte
}{
	{Gzip, []byte{0x1f, 0x8b, 0x08}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{LZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{Snappy, []byte("\xff\x06\x00\x00sNaPpY")},
	{S2, []byte("\xff\x06\x00\x00S2sTwO")},
}

const maxMagic = 10

// ParseAlgorithm parses a configured codec name. The empty string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	case "gz":
		return Gzip, nil
	case "zst":
		return Zstd, nil
	default:
		return "", shrederrors.Newf(shrederrors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
	}
}

// FromExtension maps a file name to the codec its extension names, or None.
func FromExtension(path string) Algorithm {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	case ".sz", ".snappy":
		return Snappy
	case ".s2":
		return S2
	default:
		return None
	}
}

// Detect peeks at the head of r and reports the codec its magic number
// identifies, or None. Nothing is consumed from r.
func Detect(r *bufio.Reader) (Algorithm, error) {
	head, err := r.Peek(maxMagic)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return None, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "read stream header")
	}
	for _, m := range magics {
		if bytes.HasPrefix(head, m.prefix) {
			return m.alg, nil
		}
	}
	return None, nil
}

// NewReader wraps r with a decompressor for alg.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "open gzip stream")
		}
		return gr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "open zstd stream")
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, shrederrors.Newf(shrederrors.ErrorTypeConfig, "unsupported compression algorithm: %s", alg)
	}
}

// NewWriter wraps w with a compressor for alg. Close flushes the codec
// trailer but leaves w open.
func NewWriter(w io.Writer, alg Algorithm, level Level) (io.WriteCloser, error) {
	switch alg {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create gzip writer")
		}
		return gw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create lz4 writer")
		}
		return lw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create zstd writer")
		}
		return enc, nil
	case S2:
		return s2.NewWriter(w, mapS2Level(level)...), nil
	default:
		return nil, shrederrors.Newf(shrederrors.ErrorTypeConfig, "unsupported compression algorithm: %s", alg)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Level(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}
