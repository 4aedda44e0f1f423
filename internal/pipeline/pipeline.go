// Package pipeline drives size searches over single files and whole
// directory trees.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AnyUserName/sizefit/internal/encoder"
	"github.com/AnyUserName/sizefit/internal/manifest"
	"github.com/AnyUserName/sizefit/internal/search"
	"github.com/AnyUserName/sizefit/internal/source"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// LockFileName guards an output directory against concurrent runs.
const LockFileName = ".sizefit.lock"

var (
	// ErrOutputLocked is returned when another run holds the output directory.
	ErrOutputLocked = errors.New("output directory is in use by another sizefit run")
	// ErrNoImages is returned when a scan finds nothing to process.
	ErrNoImages = errors.New("no images found")
)

// Config holds all parameters for a pipeline.
type Config struct {
	OutputDir string
	// Target is the byte budget per output file.
	Target int64
	Params search.Params
	// Preset is recorded in the manifest only.
	Preset string
	// Fallback is the lossy format for sources without a quality knob.
	Fallback        string
	Prefix          string
	Workers         int
	SkipUnderBudget bool
	// KeepLossless rewrites PNG, GIF, TIFF and BMP sources that already
	// fit in their own format. The smaller of the rewrite and the
	// original bytes is kept.
	KeepLossless bool
	// MaxDownscales bounds how often an image is halved when even the
	// quality floor misses the budget.
	MaxDownscales int
	// Background fills transparent pixels for outputs without alpha.
	Background color.Color
	Logger     *slog.Logger
	// Registry defaults to encoder.NewRegistry().
	Registry *encoder.Registry
}

// Pipeline orchestrates image processing.
type Pipeline struct {
	cfg      Config
	registry *encoder.Registry
	log      *slog.Logger
}

// New validates cfg and creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Target <= 0 {
		return nil, fmt.Errorf("%w: %d", search.ErrInvalidBudget, cfg.Target)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Fallback == "" {
		cfg.Fallback = "jpeg"
	}
	if cfg.Background == nil {
		cfg.Background = color.White
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = encoder.NewRegistry()
	}
	return &Pipeline{cfg: cfg, registry: reg, log: cfg.Logger}, nil
}

// Registry returns the encoder registry in use.
func (p *Pipeline) Registry() *encoder.Registry { return p.registry }

// Run compresses every image under inputDir into the output directory
// and returns the manifest. A failing image is logged and counted; the
// run fails only when every image failed or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, inputDir string) (*manifest.Manifest, error) {
	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(p.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(absOutput, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, absOutput)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.log.Warn("failed to release output lock", "error", err)
		}
		_ = os.Remove(lock.Path())
	}()

	p.log.Debug(p.registry.String())

	// Never re-ingest our own outputs when the output dir sits inside the input.
	skipOutput := func(path string) bool {
		return path == absOutput || strings.HasPrefix(path, absOutput+string(filepath.Separator))
	}
	sources, err := source.Scan(absInput, skipOutput)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, absInput)
	}
	p.log.Info("scan complete", "images", len(sources), "input", absInput)

	jobs, err := p.Plan(sources, absOutput)
	if err != nil {
		return nil, err
	}

	type result struct {
		entry manifest.Entry
		err   error
	}
	results := make([]result, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := p.CompressFile(ctx, j.Source, j.OutPath)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				entry.Output.Path = filepath.ToSlash(mustRel(absOutput, j.OutPath))
			}
			results[i] = result{entry: entry, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := manifest.New(p.cfg.Preset, p.cfg.Target, p.cfg.Params)
	var failed int
	for i, r := range results {
		if r.err != nil {
			failed++
			p.log.Error("compress failed", "file", jobs[i].Source.RelPath, "error", r.err)
			continue
		}
		m.Add(jobs[i].Source.RelPath, r.entry)
	}
	if failed == len(jobs) {
		return nil, fmt.Errorf("all %d images failed to process", failed)
	}
	if failed > 0 {
		p.log.Warn("some images had errors", "failed", failed, "total", len(jobs))
	}

	m.BuildInfo = &manifest.BuildInfo{
		Workers:  p.cfg.Workers,
		Encoders: p.registry.Available(),
		Fallback: p.cfg.Fallback,
	}
	m.Stats.Failed = failed
	m.ComputeStats()
	return m, nil
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}
