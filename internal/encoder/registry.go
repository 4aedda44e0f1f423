package encoder

import (
	"fmt"
	"strings"
)

// priority is the listing order for Available.
var priority = []string{"avif", "webp", "jpeg", "png", "gif", "tiff", "bmp"}

// Registry holds all available encoders keyed by format.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry, probing all encoders for availability.
func NewRegistry() *Registry {
	return NewRegistryWith(
		NewAVIFEncoder(),
		NewWebPEncoder(),
		&JPEGEncoder{},
		&PNGEncoder{},
		&GIFEncoder{},
		&TIFFEncoder{},
		&BMPEncoder{},
	)
}

// NewRegistryWith registers the given encoders. Only available ones are kept.
func NewRegistryWith(all ...Encoder) *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
	}
	for _, enc := range all {
		if enc.Available() {
			r.encoders[enc.Format()] = enc
		}
	}
	return r
}

// Get returns an encoder for the given format, or nil if unavailable.
func (r *Registry) Get(format string) Encoder {
	return r.encoders[NormalizeFormat(format)]
}

// Available returns all available format names.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range priority {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// ForOutput picks the encoder a size search should drive for a source
// format. A lossy encoder for the source format is used as is; anything
// else (PNG, GIF, TIFF, BMP, or a lossy format whose tool is missing) is
// re-encoded through fallback, since only quality-driven formats can be
// steered toward a byte budget.
func (r *Registry) ForOutput(srcFormat, fallback string) (Encoder, error) {
	if enc := r.Get(srcFormat); enc != nil && enc.Capabilities().Lossy {
		return enc, nil
	}
	enc := r.Get(fallback)
	if enc == nil {
		return nil, fmt.Errorf("%w: fallback format %q", ErrNoEncoder, fallback)
	}
	if !enc.Capabilities().Lossy {
		return nil, fmt.Errorf("%w: fallback format %q is not quality-driven", ErrNoEncoder, fallback)
	}
	return enc, nil
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}
