package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajitpratap0/shredder/pkg/compression"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/mmap"
)

// MappedSource frames documents straight out of a memory-mapped dump.
// Documents returned by Next alias the mapping and stay valid until Close,
// not just until the next call.
type MappedSource struct {
	name    string
	r       *mmap.Reader
	data    []byte
	offset  int64
	maxSize int
}

var _ Source = (*MappedSource)(nil)

// OpenMapped maps an uncompressed BSON dump. Compressed files are refused
// since they cannot be framed in place.
func OpenMapped(path string, maxSize int) (*MappedSource, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxDocumentSize
	}
	r, err := mmap.NewReader(path)
	if err != nil {
		return nil, err
	}

	data := r.Bytes()
	if alg := compressedAs(path, data); alg != compression.None {
		_ = r.Close()
		return nil, shrederrors.Newf(shrederrors.ErrorTypeConfig,
			"%s is %s compressed and cannot be memory-mapped", path, alg).WithDetail("path", path)
	}

	return &MappedSource{name: path, r: r, data: data, maxSize: maxSize}, nil
}

// compressedAs reports the codec a file appears to use. A magic number only
// counts when the same bytes do not also frame a plausible first document.
func compressedAs(path string, data []byte) compression.Algorithm {
	if alg := compression.FromExtension(path); alg != compression.None {
		return alg
	}
	alg, err := compression.Detect(bufio.NewReader(bytes.NewReader(data)))
	if err != nil || alg == compression.None || len(data) < 4 {
		return compression.None
	}
	size := int64(int32(binary.LittleEndian.Uint32(data)))
	if size >= minDocumentSize && size <= int64(len(data)) && data[size-1] == 0 {
		return compression.None
	}
	return alg
}

// Name returns the mapped path.
func (s *MappedSource) Name() string {
	return s.name
}

// Offset returns the number of bytes consumed so far.
func (s *MappedSource) Offset() int64 {
	return s.offset
}

// Next returns the document at the current offset.
func (s *MappedSource) Next(ctx context.Context) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rest := s.data[s.offset:]
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if len(rest) < 4 {
		return nil, malformedAt(s.name, s.offset, io.ErrUnexpectedEOF, "truncated length prefix")
	}

	size := int64(int32(binary.LittleEndian.Uint32(rest)))
	if msg := lengthProblem(size, s.maxSize); msg != "" {
		return nil, malformedAt(s.name, s.offset, nil, msg).WithDetail("length", size)
	}
	if size > int64(len(rest)) {
		return nil, malformedAt(s.name, s.offset, io.ErrUnexpectedEOF, "truncated document").WithDetail("length", size)
	}
	doc := rest[:size:size]
	if doc[size-1] != 0 {
		return nil, malformedAt(s.name, s.offset, nil, "document is not zero terminated").WithDetail("length", size)
	}

	s.offset += size
	return bson.Raw(doc), nil
}

// Close unmaps the file. Documents returned earlier must not be used after.
func (s *MappedSource) Close() error {
	s.data = nil
	return s.r.Close()
}
