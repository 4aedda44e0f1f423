// Package config loads sizefit settings from defaults, a TOML file and
// named presets.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AnyUserName/sizefit/internal/search"
	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
)

// Output controls where and how results are written.
type Output struct {
	// Fallback is the lossy format used for sources whose own format has
	// no quality knob.
	Fallback        string `toml:"fallback"`
	Prefix          string `toml:"prefix"`
	Workers         int    `toml:"workers"`
	SkipUnderBudget bool   `toml:"skip_under_budget"`
	// KeepLossless rewrites lossless sources that already fit in their
	// own format instead of converting them to Fallback.
	KeepLossless  bool `toml:"keep_lossless"`
	MaxDownscales int  `toml:"max_downscales"`
	// Background is the hex colour transparent pixels are flattened onto
	// when the output format has no alpha.
	Background string `toml:"background"`
}

// Log controls logging.
type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Config is the full sizefit configuration.
type Config struct {
	Preset string        `toml:"preset"`
	Target string        `toml:"target"`
	Search search.Params `toml:"search"`
	Output Output        `toml:"output"`
	Log    Log           `toml:"log"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Preset: "default",
		Search: search.DefaultParams(),
		Output: Output{
			Fallback:   "jpeg",
			Prefix:     "compressed_",
			Background: "#ffffff",
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 2,
		},
	}
}

// Load reads path over the defaults. The preset named in the file (or
// presetOverride when non-empty) seeds the search parameters, and any
// [search] keys in the file override the preset. A missing file at an
// empty path is not an error.
func Load(path, presetOverride string) (Config, error) {
	cfg := Default()

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(expandHome(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var head struct {
			Preset string `toml:"preset"`
		}
		if err := toml.Unmarshal(data, &head); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if head.Preset != "" {
			cfg.Preset = head.Preset
		}
	}
	if presetOverride != "" {
		cfg.Preset = presetOverride
	}

	p, err := LookupPreset(cfg.Preset)
	if err != nil {
		return Config{}, err
	}
	cfg.Search = p.Params

	if data != nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if presetOverride != "" {
			cfg.Preset = presetOverride
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	var errs []error
	if err := c.Search.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Target != "" {
		if _, err := ParseSize(c.Target); err != nil {
			errs = append(errs, err)
		}
	}
	if strings.TrimSpace(c.Output.Fallback) == "" {
		errs = append(errs, errors.New("output.fallback must be set"))
	}
	if strings.ContainsAny(c.Output.Prefix, `/\`) {
		errs = append(errs, fmt.Errorf("output.prefix %q must not contain path separators", c.Output.Prefix))
	}
	if c.Output.Workers < 0 {
		errs = append(errs, fmt.Errorf("output.workers must be >= 0, got %d", c.Output.Workers))
	}
	if c.Output.MaxDownscales < 0 || c.Output.MaxDownscales > 8 {
		errs = append(errs, fmt.Errorf("output.max_downscales must be 0-8, got %d", c.Output.MaxDownscales))
	}
	if _, err := ParseColor(c.Output.Background); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unsupported value %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// ParseSize parses a byte budget. Bare numbers are KiB, matching the
// "target size in KB" convention; anything else goes through humanize
// ("850KB", "1.5MiB", "200000 B").
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty target size")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("target size must be positive, got %q", s)
		}
		if n > math.MaxInt64/1024 {
			return 0, fmt.Errorf("target size %q KiB is too large", s)
		}
		return n * 1024, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse target size %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("target size must be positive, got %q", s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("target size %q is too large", s)
	}
	return int64(n), nil
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("background colour %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("background colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// DefaultPath returns ~/.config/sizefit/config.toml when it exists.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "sizefit", "config.toml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
