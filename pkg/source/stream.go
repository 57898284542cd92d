package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajitpratap0/shredder/pkg/compression"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

const (
	// minDocumentSize is the length prefix plus the terminating zero byte
	minDocumentSize = 5
	// DefaultMaxDocumentSize matches the MongoDB server limit.
	DefaultMaxDocumentSize = 16 * 1024 * 1024

	readBufferSize = 256 * 1024
)

// StreamSource reads concatenated BSON documents. Each document starts with
// its own little-endian int32 length, so the stream needs no other framing.
type StreamSource struct {
	name    string
	r       *bufio.Reader
	closers []io.Closer
	maxSize int
	offset  int64
	buf     []byte
}

var _ Source = (*StreamSource)(nil)

// NewStreamSource reads documents from r. Documents larger than maxSize
// bytes are rejected; zero selects DefaultMaxDocumentSize.
func NewStreamSource(name string, r io.Reader, maxSize int) *StreamSource {
	if maxSize <= 0 {
		maxSize = DefaultMaxDocumentSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, readBufferSize)
	}
	return &StreamSource{name: name, r: br, maxSize: maxSize}
}

// OpenFile opens a BSON dump. path "-" reads stdin. codec is a compression
// algorithm name, or "auto" to pick one from the file extension and then
// from the stream's magic number.
func OpenFile(path, codec string, maxSize int) (*StreamSource, error) {
	var (
		f    io.ReadCloser
		name = path
	)
	if path == "-" {
		f = io.NopCloser(os.Stdin)
		name = "stdin"
	} else {
		file, err := os.Open(path) //nolint:gosec // G304: path comes from operator configuration
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "open input").
				WithDetail("path", path)
		}
		f = file
	}

	br := bufio.NewReaderSize(f, readBufferSize)
	alg, err := resolveCodec(path, codec, br)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	dr, err := compression.NewReader(br, alg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	s := NewStreamSource(name, dr, maxSize)
	s.closers = []io.Closer{dr, f}
	return s, nil
}

func resolveCodec(path, codec string, br *bufio.Reader) (compression.Algorithm, error) {
	if codec != "auto" {
		return compression.ParseAlgorithm(codec)
	}
	if alg := compression.FromExtension(path); alg != compression.None {
		return alg, nil
	}
	return compression.Detect(br)
}

// Name returns the file name, or "stdin".
func (s *StreamSource) Name() string {
	return s.name
}

// Offset is the number of uncompressed bytes consumed so far.
func (s *StreamSource) Offset() int64 {
	return s.offset
}

// Next reads one document. A stream that ends between documents yields
// io.EOF; one that ends inside a document, or declares an impossible
// length, yields a malformed document error.
func (s *StreamSource) Next(ctx context.Context) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var prefix [4]byte
	n, err := io.ReadFull(s.r, prefix[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		return nil, s.malformed(err, "truncated length prefix")
	}

	size := int64(int32(binary.LittleEndian.Uint32(prefix[:])))
	if msg := lengthProblem(size, s.maxSize); msg != "" {
		return nil, s.malformed(nil, msg).WithDetail("length", size)
	}

	if cap(s.buf) < int(size) {
		s.buf = make([]byte, size)
	}
	doc := s.buf[:size]
	copy(doc, prefix[:])
	if _, err := io.ReadFull(s.r, doc[4:]); err != nil {
		return nil, s.malformed(err, "truncated document").WithDetail("length", size)
	}
	if doc[size-1] != 0 {
		return nil, s.malformed(nil, "document is not zero terminated").WithDetail("length", size)
	}

	s.offset += size
	return bson.Raw(doc), nil
}

func (s *StreamSource) malformed(cause error, msg string) *shrederrors.Error {
	return malformedAt(s.name, s.offset, cause, msg)
}

// lengthProblem describes what is wrong with a declared document length,
// or returns "" when the length is acceptable.
func lengthProblem(size int64, maxSize int) string {
	switch {
	case size < minDocumentSize:
		return "declared document length below minimum"
	case size > int64(maxSize):
		return "declared document length exceeds limit"
	}
	return ""
}

func malformedAt(name string, offset int64, cause error, msg string) *shrederrors.Error {
	var err *shrederrors.Error
	if cause != nil {
		if errors.Is(cause, io.EOF) {
			cause = io.ErrUnexpectedEOF
		}
		err = shrederrors.Wrap(cause, shrederrors.ErrorTypeMalformedDocument, msg)
	} else {
		err = shrederrors.New(shrederrors.ErrorTypeMalformedDocument, msg)
	}
	return err.WithDetail("offset", offset).WithDetail("source", name)
}

// Close closes the decompressor and the file, in that order.
func (s *StreamSource) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
