// Package source discovers and decodes input images.
package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/sizefit/internal/encoder"
)

// Source represents a discovered image file.
type Source struct {
	// AbsPath is the absolute path to the file on disk.
	AbsPath string
	// RelPath is the slash-separated path relative to the scan root.
	RelPath string
	// Key is RelPath without its extension.
	Key string
	// Format is the encoding found in the file header (jpeg, png, webp,
	// gif, bmp, tiff). An unreadable header falls back to the extension.
	Format string
	// Size is the file size in bytes.
	Size int64
}

// imageExtensions lists recognized image file extensions.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// IsImage reports whether path has a recognized image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Scan walks root and returns every image below it, skipping hidden
// directories and any path for which skip returns true.
func Scan(root string, skip func(path string) bool) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if path != root && skip != nil && skip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsImage(path) || (skip != nil && skip(path)) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sources = append(sources, newSource(path, relPath, info.Size()))
		return nil
	})

	return sources, err
}

// Stat builds a Source for a single file.
func Stat(path string) (Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Source{}, err
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", path)
	}
	if !IsImage(abs) {
		return Source{}, fmt.Errorf("%s: unsupported image extension", path)
	}
	return newSource(abs, filepath.Base(abs), info.Size()), nil
}

// ExtFormat is the format the file extension claims.
func (s Source) ExtFormat() string {
	return encoder.NormalizeFormat(filepath.Ext(s.RelPath))
}

func newSource(absPath, relPath string, size int64) Source {
	ext := filepath.Ext(relPath)
	format := encoder.NormalizeFormat(ext)
	if sniffed, ok := sniffFormat(absPath); ok {
		format = sniffed
	}
	return Source{
		AbsPath: absPath,
		RelPath: filepath.ToSlash(relPath),
		Key:     filepath.ToSlash(strings.TrimSuffix(relPath, ext)),
		Format:  format,
		Size:    size,
	}
}

// sniffFormat reads only the image header.
func sniffFormat(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", false
	}
	return encoder.NormalizeFormat(format), true
}
