// Package mmap provides read-only memory-mapped files, so large BSON dumps
// can be framed without copying them through a read buffer.
package mmap

import (
	"os"
	"sync"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// Reader provides memory-mapped file reading with zero-copy performance
type Reader struct {
	file *os.File
	data []byte
	mu   sync.RWMutex
}

// NewReader maps filename into memory. An empty file yields a Reader with
// no data.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "open file").
			WithDetail("path", filename)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "stat file").
			WithDetail("path", filename)
	}
	if !stat.Mode().IsRegular() {
		_ = file.Close()
		return nil, shrederrors.New(shrederrors.ErrorTypeFile, "only regular files can be mapped").
			WithDetail("path", filename)
	}

	r := &Reader{file: file}
	if stat.Size() == 0 {
		return r, nil
	}

	data, err := mapFile(file, int(stat.Size()))
	if err != nil {
		_ = file.Close()
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "map file").
			WithDetail("path", filename)
	}
	r.data = data
	return r, nil
}

// Bytes returns the mapped contents. The slice is valid until Close.
func (r *Reader) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Len returns the file size.
func (r *Reader) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close unmaps the file and closes it
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error

	// Unmap the file
	if r.data != nil {
		err = unmapFile(r.data)
		r.data = nil
	}

	// Close the file
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}

	return err
}
