// Package encoder wraps the output codecs behind one interface and
// describes what each of them can do.
package encoder

import (
	"context"
	"errors"
	"image"
	"strings"
)

// ErrNoEncoder is returned when no usable encoder exists for a format.
var ErrNoEncoder = errors.New("no encoder available")

// Capabilities describes an output format. The quality search only runs
// against lossy encoders; lossless ones ignore the quality argument.
type Capabilities struct {
	// Lossy is true when quality changes the encoded size.
	Lossy bool
	// Alpha is true when the format keeps transparency.
	Alpha bool
}

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format name (e.g. "jpeg", "webp", "avif", "png").
	Format() string

	// Encode converts the image to bytes at the given quality (1-100).
	Encode(ctx context.Context, img image.Image, quality int) ([]byte, error)

	// Available returns true if the encoder is ready to use.
	// External encoders (cwebp, avifenc) may not be installed.
	Available() bool

	// Extension returns the file extension without dot.
	Extension() string

	Capabilities() Capabilities
}

// NormalizeFormat maps extension-style names (".JPG", "tif") onto format names.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}
