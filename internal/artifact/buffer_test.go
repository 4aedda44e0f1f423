package artifact

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/sizefit/internal/encoder"
	"github.com/AnyUserName/sizefit/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8((x * 255) / w)
			g := uint8((y * 255) / h)
			b := uint8((x + y*2) % 255)
			if (x+y)%3 == 0 {
				r = 255 - r
			}
			if (x*y)%7 == 0 {
				g = 255 - g
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

type failingEncoder struct{ *encoder.JPEGEncoder }

var errDisk = errors.New("disk full")

func (failingEncoder) Encode(context.Context, image.Image, int) ([]byte, error) {
	return nil, errDisk
}

func TestBuffer_KeepsLatestEncode(t *testing.T) {
	b := New(noisyImage(64, 64), &encoder.JPEGEncoder{})
	ctx := context.Background()

	hi, err := b.EncodeAt(ctx, 90)
	require.NoError(t, err)
	lo, err := b.EncodeAt(ctx, 30)
	require.NoError(t, err)

	assert.Less(t, lo, hi)
	assert.Equal(t, lo, b.Len())
	assert.Equal(t, 30, b.Quality())
	assert.Equal(t, 2, b.Encodes())
}

func TestBuffer_FailedEncodeKeepsPrevious(t *testing.T) {
	b := New(noisyImage(16, 16), failingEncoder{&encoder.JPEGEncoder{}})
	_, err := b.EncodeAt(context.Background(), 50)
	assert.ErrorIs(t, err, errDisk)
	assert.Nil(t, b.Bytes())
	assert.ErrorIs(t, b.Commit(context.Background(), filepath.Join(t.TempDir(), "x.jpg")), ErrEmpty)
}

func TestBuffer_CommitAfterSearch(t *testing.T) {
	img := noisyImage(256, 256)
	b := New(img, &encoder.JPEGEncoder{})
	ctx := context.Background()

	top, err := (&encoder.JPEGEncoder{}).Encode(ctx, img, 95)
	require.NoError(t, err)
	target := int64(len(top)) / 2

	res, err := search.Search(ctx, b, target, search.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, res.Quality, b.Quality())
	assert.Equal(t, res.Size, b.Len())
	assert.True(t, res.WithinBudget)

	out := filepath.Join(t.TempDir(), "nested", "out.jpg")
	require.NoError(t, b.Commit(ctx, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, res.Size, info.Size())

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files left behind")
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	ctx := context.Background()
	require.NoError(t, WriteFile(ctx, path, []byte("first version")))
	require.NoError(t, WriteFile(ctx, path, []byte("v2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestWriteFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WriteFile(ctx, filepath.Join(t.TempDir(), "a.bin"), []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
