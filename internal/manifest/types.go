package manifest

import "github.com/AnyUserName/sizefit/internal/search"

// FileName is the manifest written at the root of a batch output directory.
const FileName = "sizefit.manifest.json"

// Manifest is the top-level report of a sizefit run.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	RunID       string           `json:"run_id"`
	Preset      string           `json:"preset"`
	TargetBytes int64            `json:"target_bytes"`
	Params      search.Params    `json:"params"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	// Files is keyed by the slash-separated source path relative to the input root.
	Files       map[string]Entry `json:"files"`
	Stats       Stats            `json:"stats"`
}

// BuildInfo captures run-time parameters for diagnostics.
type BuildInfo struct {
	Workers  int      `json:"workers"`
	Encoders []string `json:"encoders"`
	Fallback string   `json:"fallback"`
}

// Entry describes one source image and the output written for it.
type Entry struct {
	Source SourceInfo `json:"source"`
	Output OutputInfo `json:"output"`
}

// SourceInfo holds metadata about the input file.
type SourceInfo struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	HasAlpha bool   `json:"has_alpha"`
}

// OutputInfo describes the committed artifact. Path is relative to the
// manifest directory and Size is the byte count on disk.
type OutputInfo struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	Quality      int  `json:"quality,omitempty"`
	Probes       int  `json:"probes"`
	WithinBudget bool `json:"within_budget"`
	InBand       bool `json:"in_band"`
	Anomalies    int  `json:"anomalies,omitempty"`
	// Downscales counts how many times the image was halved.
	Downscales int `json:"downscales,omitempty"`
	// Copied is set when the source already fit and was copied verbatim.
	Copied bool `json:"copied,omitempty"`
	// Lossless is set when the source was rewritten in its own lossless
	// format rather than searched.
	Lossless bool `json:"lossless,omitempty"`
}

// Stats aggregates run metrics. Failed counts sources that errored and
// therefore have no entry.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	TotalFiles       int   `json:"total_files"`
	WithinBudget     int   `json:"within_budget"`
	OverBudget       int   `json:"over_budget"`
	InBand           int   `json:"in_band"`
	Copied           int   `json:"copied,omitempty"`
	TotalProbes      int   `json:"total_probes"`
	Failed           int   `json:"failed,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1
