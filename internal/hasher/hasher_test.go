package hasher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	data := []byte("sizefit")
	full := ContentHash(data, 0)
	assert.Len(t, full, 16)
	assert.Equal(t, full[:8], ContentHash(data, 8))
	assert.Equal(t, full, ContentHash(data, 64))
	assert.NotEqual(t, full, ContentHash([]byte("sizefit!"), 0))

	// xxHash64 of the empty input.
	assert.Equal(t, "ef46db3751d8e999", ContentHash(nil, 0))
}

func TestContentHashReaderMatches(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB, 0x01}, 10_000)
	streamed, err := ContentHashReader(bytes.NewReader(data), DefaultHexLen)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(data, DefaultHexLen), streamed)
}

func TestFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	got, err := FileHash(path, 12)
	require.NoError(t, err)
	assert.Equal(t, ContentHash([]byte("payload"), 12), got)

	_, err = FileHash(filepath.Join(t.TempDir(), "missing"), 12)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
