package encoder

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// tool locates an external command once per process.
type tool struct {
	name string
	once sync.Once
	path string
}

func (t *tool) lookup() (string, bool) {
	t.once.Do(func() {
		if p, err := exec.LookPath(t.name); err == nil {
			t.path = p
		}
	})
	return t.path, t.path != ""
}

// WebPEncoder encodes images to WebP by shelling out to cwebp.
// This approach avoids CGO while still producing optimized WebP.
// Install: brew install webp / apt install webp
type WebPEncoder struct {
	cwebp tool
}

// NewWebPEncoder returns an encoder backed by cwebp from PATH.
func NewWebPEncoder() *WebPEncoder {
	return &WebPEncoder{cwebp: tool{name: "cwebp"}}
}

func (e *WebPEncoder) Format() string             { return "webp" }
func (e *WebPEncoder) Extension() string          { return "webp" }
func (e *WebPEncoder) Capabilities() Capabilities { return Capabilities{Lossy: true, Alpha: true} }

func (e *WebPEncoder) Available() bool {
	_, ok := e.cwebp.lookup()
	return ok
}

func (e *WebPEncoder) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	bin, ok := e.cwebp.lookup()
	if !ok {
		return nil, fmt.Errorf("cwebp not found in PATH; install with: brew install webp")
	}
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	return runTool(ctx, img, "webp", func(src, dst string) *exec.Cmd {
		return exec.CommandContext(ctx, bin,
			"-q", strconv.Itoa(quality),
			"-m", "6", // compression method (0=fast, 6=best)
			"-mt",
			"-quiet",
			src,
			"-o", dst,
		)
	})
}

// AVIFEncoder encodes images to AVIF by shelling out to avifenc.
// Install: brew install libavif / apt install libavif-bin
type AVIFEncoder struct {
	avifenc tool
}

// NewAVIFEncoder returns an encoder backed by avifenc from PATH.
func NewAVIFEncoder() *AVIFEncoder {
	return &AVIFEncoder{avifenc: tool{name: "avifenc"}}
}

func (e *AVIFEncoder) Format() string             { return "avif" }
func (e *AVIFEncoder) Extension() string          { return "avif" }
func (e *AVIFEncoder) Capabilities() Capabilities { return Capabilities{Lossy: true, Alpha: true} }

func (e *AVIFEncoder) Available() bool {
	_, ok := e.avifenc.lookup()
	return ok
}

func (e *AVIFEncoder) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	bin, ok := e.avifenc.lookup()
	if !ok {
		return nil, fmt.Errorf("avifenc not found in PATH; install with: brew install libavif")
	}
	if quality <= 0 || quality > 100 {
		quality = 82
	}

	// avifenc quantizers run 0 (best) to 63 (worst).
	q := strconv.Itoa(avifQuantizer(quality))
	return runTool(ctx, img, "avif", func(src, dst string) *exec.Cmd {
		return exec.CommandContext(ctx, bin,
			"--min", q,
			"--max", q,
			"--speed", "6", // 0=slowest, 10=fastest
			"-j", "all",
			src,
			dst,
		)
	})
}

func avifQuantizer(quality int) int {
	return 63 - (quality * 63 / 100)
}

// runTool writes img as a temp PNG, runs the command built by mk and
// returns the bytes it wrote to the destination temp file.
func runTool(ctx context.Context, img image.Image, ext string, mk func(src, dst string) *exec.Cmd) ([]byte, error) {
	id := tempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("sizefit_src_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	if err := png.Encode(srcFile, img); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	if err := srcFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp png: %w", err)
	}

	dstFile, err := os.CreateTemp("", fmt.Sprintf("sizefit_dst_%d_*.%s", id, ext))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	cmd := mk(srcPath, dstPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %w: %s", cmd.Path, err, string(out))
	}
	return os.ReadFile(dstPath)
}
