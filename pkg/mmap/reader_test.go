package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

func TestReaderMapsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("mapped bytes"), 0o600))

	r, err := NewReader(path)
	require.NoError(t, err)
	assert.Equal(t, "mapped bytes", string(r.Bytes()))
	assert.Equal(t, 12, r.Len())

	require.NoError(t, r.Close())
	assert.Nil(t, r.Bytes())
	// Close is idempotent
	assert.NoError(t, r.Close())
}

func TestReaderEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 0, r.Len())
}

func TestReaderErrors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeFile))

	_, err = NewReader(t.TempDir())
	assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeFile))
}
