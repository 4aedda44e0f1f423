package encoder

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// PNGEncoder encodes images to PNG with best compression.
// Quality is ignored.
type PNGEncoder struct{}

func (e *PNGEncoder) Format() string             { return "png" }
func (e *PNGEncoder) Extension() string          { return "png" }
func (e *PNGEncoder) Available() bool            { return true }
func (e *PNGEncoder) Capabilities() Capabilities { return Capabilities{Alpha: true} }

func (e *PNGEncoder) Encode(ctx context.Context, img image.Image, _ int) ([]byte, error) {
	return encodeLossless(ctx, 512*1024, func(buf *bytes.Buffer) error {
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(buf, img)
	})
}

// GIFEncoder re-encodes to a 256-colour palette.
type GIFEncoder struct{}

func (e *GIFEncoder) Format() string             { return "gif" }
func (e *GIFEncoder) Extension() string          { return "gif" }
func (e *GIFEncoder) Available() bool            { return true }
func (e *GIFEncoder) Capabilities() Capabilities { return Capabilities{Alpha: true} }

func (e *GIFEncoder) Encode(ctx context.Context, img image.Image, _ int) ([]byte, error) {
	return encodeLossless(ctx, 128*1024, func(buf *bytes.Buffer) error {
		return gif.Encode(buf, img, nil)
	})
}

// BMPEncoder writes uncompressed bitmaps.
type BMPEncoder struct{}

func (e *BMPEncoder) Format() string             { return "bmp" }
func (e *BMPEncoder) Extension() string          { return "bmp" }
func (e *BMPEncoder) Available() bool            { return true }
func (e *BMPEncoder) Capabilities() Capabilities { return Capabilities{} }

func (e *BMPEncoder) Encode(ctx context.Context, img image.Image, _ int) ([]byte, error) {
	b := img.Bounds()
	return encodeLossless(ctx, b.Dx()*b.Dy()*3+54, func(buf *bytes.Buffer) error {
		return bmp.Encode(buf, img)
	})
}

// TIFFEncoder writes deflate-compressed TIFF. x/image/tiff has no
// JPEG-in-TIFF mode, so TIFF output is never quality-driven.
type TIFFEncoder struct{}

func (e *TIFFEncoder) Format() string             { return "tiff" }
func (e *TIFFEncoder) Extension() string          { return "tiff" }
func (e *TIFFEncoder) Available() bool            { return true }
func (e *TIFFEncoder) Capabilities() Capabilities { return Capabilities{Alpha: true} }

func (e *TIFFEncoder) Encode(ctx context.Context, img image.Image, _ int) ([]byte, error) {
	return encodeLossless(ctx, 512*1024, func(buf *bytes.Buffer) error {
		return tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	})
}

func encodeLossless(ctx context.Context, hint int, fn func(*bytes.Buffer) error) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(hint)
	if err := fn(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
