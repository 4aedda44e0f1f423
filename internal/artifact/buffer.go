// Package artifact holds the single output artifact a size search writes
// into. Every encode replaces the buffered bytes; storage is touched once,
// when the caller commits the final encode.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/AnyUserName/sizefit/internal/encoder"
)

// ErrEmpty is returned when committing a buffer that was never encoded.
var ErrEmpty = errors.New("artifact has no encoded data")

// Buffer encodes one image in memory. It satisfies search.Encoder.
// A Buffer is not safe for concurrent use; give each search its own.
type Buffer struct {
	img     image.Image
	enc     encoder.Encoder
	data    []byte
	quality int
	encodes int
}

// New returns an empty buffer for img encoded by enc.
func New(img image.Image, enc encoder.Encoder) *Buffer {
	return &Buffer{img: img, enc: enc}
}

// EncodeAt encodes the image at quality, replacing the previous bytes.
// On failure the previous bytes are kept.
func (b *Buffer) EncodeAt(ctx context.Context, quality int) (int64, error) {
	data, err := b.enc.Encode(ctx, b.img, quality)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", b.enc.Format(), err)
	}
	b.data = data
	b.quality = quality
	b.encodes++
	return int64(len(data)), nil
}

// Bytes returns the latest encoded bytes.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the size of the latest encode.
func (b *Buffer) Len() int64 { return int64(len(b.data)) }

// Quality returns the quality of the latest encode, or 0 before any.
func (b *Buffer) Quality() int { return b.quality }

// Encodes counts successful encodes.
func (b *Buffer) Encodes() int { return b.encodes }

// Encoder returns the encoder behind the buffer.
func (b *Buffer) Encoder() encoder.Encoder { return b.enc }

// Commit writes the latest bytes to path atomically: a temp file in the
// destination directory is synced and renamed over path.
func (b *Buffer) Commit(ctx context.Context, path string) error {
	if b.data == nil {
		return ErrEmpty
	}
	return WriteFile(ctx, path, b.data)
}

// WriteFile atomically replaces path with data.
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sizefit-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
