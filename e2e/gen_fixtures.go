//go:build ignore

// gen_fixtures writes a small image tree for a batch smoke test:
// one file per supported input format, a nested directory, a pair of
// sources that share a stem, and a noisy image no quality can shrink
// below a tight target without downscaling.
//
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(filepath.Join(dir, "cards"), 0o755); err != nil {
		panic(err)
	}

	photo := gradient(1600, 900)
	write(filepath.Join(dir, "photo.jpg"), func(w io.Writer) error {
		return jpeg.Encode(w, photo, &jpeg.Options{Quality: 98})
	})
	write(filepath.Join(dir, "scan.tiff"), func(w io.Writer) error {
		return tiff.Encode(w, gradient(800, 600), nil)
	})
	write(filepath.Join(dir, "screen.bmp"), func(w io.Writer) error {
		return bmp.Encode(w, gradient(640, 480))
	})
	write(filepath.Join(dir, "noise.png"), func(w io.Writer) error {
		return png.Encode(w, noise(512, 512))
	})

	for i := 1; i <= 3; i++ {
		img := solidWithBorder(400, 300, uint8(i*60))
		write(filepath.Join(dir, "cards", fmt.Sprintf("card-%d.png", i)), func(w io.Writer) error {
			return png.Encode(w, img)
		})
	}

	// Same stem, different formats: both re-encode to the fallback format.
	logo := alphaGradient(300, 300)
	write(filepath.Join(dir, "logo.png"), func(w io.Writer) error {
		return png.Encode(w, logo)
	})
	write(filepath.Join(dir, "logo.gif"), func(w io.Writer) error {
		return gif.Encode(w, logo, nil)
	})

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 9 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x ^ y) & 0xff),
				A: 255,
			})
		}
	}
	return img
}

func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func write(path string, encode func(io.Writer) error) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := encode(f); err != nil {
		panic(err)
	}
}
