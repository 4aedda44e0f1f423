package config

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/sizefit/internal/search"
)

// Preset is a named set of search parameters.
type Preset struct {
	Name        string
	Description string
	Params      search.Params
}

// Built-in presets.
var presets = map[string]Preset{
	"default": {
		Name:        "default",
		Description: "start at 95, floor 10, steps 5/1, 10 KiB band",
		Params:      search.DefaultParams(),
	},
	"fast": {
		Name:        "fast",
		Description: "wide coarse steps, fewer encodes",
		Params: search.Params{
			InitialQuality: 90,
			MinQuality:     20,
			CoarseStep:     10,
			FineStep:       2,
			ToleranceBytes: 32 * 1024,
		},
	},
	"precise": {
		Name:        "precise",
		Description: "fine-grained descent with a tight band",
		Params: search.Params{
			InitialQuality: 100,
			MinQuality:     5,
			CoarseStep:     3,
			FineStep:       1,
			ToleranceBytes: 2 * 1024,
		},
	},
	"thumbnail": {
		Name:        "thumbnail",
		Description: "small targets: low floor, 1 KiB band",
		Params: search.Params{
			InitialQuality: 85,
			MinQuality:     1,
			CoarseStep:     6,
			FineStep:       1,
			ToleranceBytes: 1024,
		},
	},
}

// LookupPreset returns a preset by name.
func LookupPreset(name string) (Preset, error) {
	if p, ok := presets[name]; ok {
		return p, nil
	}
	return Preset{}, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
}

// PresetNames lists preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
