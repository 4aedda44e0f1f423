// Package search finds the encoder quality whose output fits a byte budget.
//
// The search assumes size is non-decreasing in quality for a given image
// and encoder. It runs a coarse descent from the initial quality to bracket
// the budget, a binary refinement inside the bracket that stops as soon as
// a size lands in [target-tolerance, target], and a corrective encode when
// the last encode is over budget. The encoder keeps only its latest output,
// so the returned Result always describes the last encode performed.
package search

import (
	"context"
	"fmt"
	"log/slog"
)

// Encoder encodes the image at a quality and reports the output size.
// Each call replaces the previous output.
type Encoder interface {
	EncodeAt(ctx context.Context, quality int) (int64, error)
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(ctx context.Context, quality int) (int64, error)

// EncodeAt calls f(ctx, quality).
func (f EncoderFunc) EncodeAt(ctx context.Context, quality int) (int64, error) {
	return f(ctx, quality)
}

// Attempt records one encode.
type Attempt struct {
	Quality int
	Size    int64
}

// Result is the outcome of a search. Quality and Size are those of the
// last encode, which is the artifact the encoder currently holds.
type Result struct {
	Quality int   `json:"quality"`
	Size    int64 `json:"size"`
	Target  int64 `json:"target"`
	Probes  int   `json:"probes"`
	// WithinBudget is false when even the quality floor exceeds the target.
	WithinBudget bool `json:"within_budget"`
	// InBand reports Size in [Target-Tolerance, Target].
	InBand bool `json:"in_band"`
	// Anomalies counts encodes that contradicted the monotonic
	// quality/size assumption.
	Anomalies int `json:"anomalies,omitempty"`
}

// Option configures a search.
type Option func(*searcher)

// WithLogger sets the logger used for encode tracing and anomaly warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *searcher) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers a callback invoked after every encode.
func WithObserver(fn func(Attempt)) Option {
	return func(s *searcher) { s.observe = fn }
}

type searcher struct {
	enc     Encoder
	target  int64
	p       Params
	log     *slog.Logger
	observe func(Attempt)

	history   []Attempt
	last      Attempt
	anomalies int
}

// Search runs the three-phase quality search against enc.
//
// An unreachable budget is not an error: the result carries
// WithinBudget=false and the floor-quality encode. Errors come only from
// invalid input, context cancellation or the encoder itself, which is
// never retried.
func Search(ctx context.Context, enc Encoder, target int64, p Params, opts ...Option) (Result, error) {
	if target <= 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidBudget, target)
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	s := &searcher{enc: enc, target: target, p: p, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	// Phase 1: coarse descent.
	quality := p.InitialQuality
	passed := false
	for quality >= p.MinQuality {
		size, err := s.encode(ctx, quality)
		if err != nil {
			return Result{}, err
		}
		if size <= target {
			passed = true
			break
		}
		quality -= p.CoarseStep
	}

	// Phase 2: bisection between lo, the highest quality known to fit, and
	// hi, the lowest known to overshoot. Both ends are always encoded
	// qualities, so every quality between them is still a candidate. With
	// no passing descent encode lo starts one fine step under the floor.
	accepted := passed && s.inBand(s.last.Size)
	lo, hi, loFits := quality, min(quality+p.CoarseStep, p.InitialQuality), passed
	if !passed {
		lo, hi = p.MinQuality-p.FineStep, s.last.Quality
	}
	for !accepted && hi-lo > p.FineStep {
		mid := max(lo+(hi-lo)/2, p.MinQuality)
		size, err := s.encode(ctx, mid)
		if err != nil {
			return Result{}, err
		}
		switch {
		case s.inBand(size):
			accepted = true
		case size <= target:
			lo, loFits = mid, true
		default:
			hi = mid
		}
	}

	// Phase 3: the last encode overshot, so re-encode the best quality that
	// fit. Without one the last encode is the floor and stays.
	if !accepted && s.last.Size > target && loFits && s.last.Quality != lo {
		s.log.Debug("re-encoding best fitting quality",
			"quality", lo, "overshoot_quality", s.last.Quality, "overshoot_size", s.last.Size)
		if _, err := s.encode(ctx, lo); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Quality:      s.last.Quality,
		Size:         s.last.Size,
		Target:       target,
		Probes:       len(s.history),
		WithinBudget: s.last.Size <= target,
		InBand:       s.inBand(s.last.Size),
		Anomalies:    s.anomalies,
	}
	s.log.Debug("search done",
		"quality", res.Quality, "size", res.Size, "target", target,
		"probes", res.Probes, "in_band", res.InBand)
	return res, nil
}

func (s *searcher) encode(ctx context.Context, quality int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("search cancelled after %d encodes: %w", len(s.history), err)
	}
	quality = clampQuality(quality)
	size, err := s.enc.EncodeAt(ctx, quality)
	if err != nil {
		return 0, fmt.Errorf("encode at quality %d: %w", quality, err)
	}

	a := Attempt{Quality: quality, Size: size}
	s.checkMonotonic(a)
	s.history = append(s.history, a)
	s.last = a
	s.log.Debug("encode", "n", len(s.history), "quality", quality, "size", size, "target", s.target)
	if s.observe != nil {
		s.observe(a)
	}
	return size, nil
}

// checkMonotonic flags a pair of encodes where the higher quality produced
// the smaller file.
func (s *searcher) checkMonotonic(a Attempt) {
	for _, prev := range s.history {
		if (prev.Quality < a.Quality && prev.Size > a.Size) ||
			(prev.Quality > a.Quality && prev.Size < a.Size) {
			s.anomalies++
			s.log.Warn("encoder size not monotonic in quality",
				"quality", a.Quality, "size", a.Size,
				"prev_quality", prev.Quality, "prev_size", prev.Size)
			return
		}
	}
}

func (s *searcher) inBand(size int64) bool {
	return size <= s.target && size >= s.target-s.p.ToleranceBytes
}
