package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajitpratap0/shredder/pkg/compression"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

func TestMappedSourceReadsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.bson")
	data := dump(t,
		bson.D{{Key: "idx", Value: int64(1)}},
		bson.D{{Key: "idx", Value: int64(2)}},
	)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := OpenMapped(path, 0)
	require.NoError(t, err)
	defer s.Close()

	docs, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(2), docs[1].Lookup("idx").Int64())
	assert.Equal(t, int64(len(data)), s.Offset())
	assert.Equal(t, path, s.Name())
}

func TestMappedSourceEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bson")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s, err := OpenMapped(path, 0)
	require.NoError(t, err)
	defer s.Close()

	docs, err := readAll(t, s)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMappedSourceMalformed(t *testing.T) {
	good := dump(t, bson.D{{Key: "a", Value: "value"}})

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated prefix", append(append([]byte{}, good...), 1, 2)},
		{"truncated body", good[:len(good)-3]},
		{"length too small", []byte{2, 0, 0, 0, 0}},
		{"missing terminator", append(append([]byte{}, good[:len(good)-1]...), 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.bson")
			require.NoError(t, os.WriteFile(path, tt.data, 0o600))

			s, err := OpenMapped(path, 0)
			require.NoError(t, err)
			defer s.Close()

			_, err = readAll(t, s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shrederrors.ErrMalformedDocument))
		})
	}
}

func TestOpenMappedRefusesCompressedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.bson")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, compression.Gzip, compression.Default)
	require.NoError(t, err)
	_, err = w.Write(dump(t, bson.D{{Key: "a", Value: 1}}))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = OpenMapped(path, 0)
	assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeConfig))
}
