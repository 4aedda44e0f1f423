package config

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/sizefit/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sizefit.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, search.DefaultParams(), cfg.Search)
	assert.Equal(t, "compressed_", cfg.Output.Prefix)
}

func TestLoad_FileOverridesPreset(t *testing.T) {
	path := writeConfig(t, `
preset = "fast"
target = "850KB"

[search]
min_quality = 30

[output]
fallback = "webp"
workers = 3
skip_under_budget = true
keep_lossless = true

[log]
level = "debug"
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	fast, err := LookupPreset("fast")
	require.NoError(t, err)
	want := fast.Params
	want.MinQuality = 30

	assert.Equal(t, "fast", cfg.Preset)
	assert.Equal(t, want, cfg.Search)
	assert.Equal(t, "webp", cfg.Output.Fallback)
	assert.Equal(t, 3, cfg.Output.Workers)
	assert.True(t, cfg.Output.SkipUnderBudget)
	assert.True(t, cfg.Output.KeepLossless)
	assert.Equal(t, "compressed_", cfg.Output.Prefix, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_PresetOverride(t *testing.T) {
	path := writeConfig(t, `preset = "fast"`)
	cfg, err := Load(path, "precise")
	require.NoError(t, err)
	assert.Equal(t, "precise", cfg.Preset)
	assert.Equal(t, 100, cfg.Search.InitialQuality)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, `preset = [`), "")
	assert.Error(t, err)

	_, err = Load("", "nope")
	assert.ErrorContains(t, err, "unknown preset")

	_, err = Load(writeConfig(t, "[search]\nmin_quality = 99\n"), "")
	assert.ErrorIs(t, err, search.ErrInvalidParams)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Output.Prefix = "a/b"
	cfg.Output.Workers = -1
	cfg.Output.MaxDownscales = 9
	cfg.Output.Fallback = " "
	cfg.Output.Background = "white"
	cfg.Log.Level = "loud"
	cfg.Target = "lots"

	err := cfg.Validate()
	require.Error(t, err)
	for _, frag := range []string{"prefix", "workers", "max_downscales", "fallback", "background", "log.level", "target size"} {
		assert.ErrorContains(t, err, frag)
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"100", 100 * 1024},
		{" 990 ", 990 * 1024},
		{"850KB", 850_000},
		{"850KiB", 850 * 1024},
		{"1.5MiB", 1536 * 1024},
		{"200000 B", 200_000},
	}
	for _, tc := range cases {
		got, err := ParseSize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "0", "-5", "0KB", "big"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}

	// Values that would wrap int64 once scaled.
	got, err := ParseSize("9007199254740991")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/1024*1024), got)
	for _, huge := range []string{"9007199254740992", "9223372036854775807", "9EiB", "15EiB"} {
		_, err := ParseSize(huge)
		assert.ErrorContains(t, err, "too large", huge)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#10ff80")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x10, G: 0xff, B: 0x80, A: 255}, c)

	_, err = ParseColor("#fff")
	assert.Error(t, err)
	_, err = ParseColor("zzzzzz")
	assert.Error(t, err)
}

func TestPresets(t *testing.T) {
	names := PresetNames()
	assert.Equal(t, []string{"default", "fast", "precise", "thumbnail"}, names)
	for _, n := range names {
		p, err := LookupPreset(n)
		require.NoError(t, err)
		assert.NoError(t, p.Params.Validate(), n)
	}
}
