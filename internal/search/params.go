package search

import (
	"errors"
	"fmt"
)

// Valid encoder quality range. Every encode is clamped into it.
const (
	MinValidQuality = 1
	MaxValidQuality = 100
)

var (
	// ErrInvalidParams is returned when search parameters break their invariants.
	ErrInvalidParams = errors.New("invalid search parameters")
	// ErrInvalidBudget is returned for a non-positive byte budget.
	ErrInvalidBudget = errors.New("target size must be positive")
)

// Params tunes the search. All fields are required; use DefaultParams
// as a starting point.
type Params struct {
	InitialQuality int   `json:"initial_quality" toml:"initial_quality"`
	MinQuality     int   `json:"min_quality" toml:"min_quality"`
	CoarseStep     int   `json:"coarse_step" toml:"coarse_step"`
	FineStep       int   `json:"fine_step" toml:"fine_step"`
	ToleranceBytes int64 `json:"tolerance_bytes" toml:"tolerance_bytes"`
}

// DefaultParams returns 95/10/5/1 with a 10 KiB tolerance band.
func DefaultParams() Params {
	return Params{
		InitialQuality: 95,
		MinQuality:     10,
		CoarseStep:     5,
		FineStep:       1,
		ToleranceBytes: 10 * 1024,
	}
}

// Validate checks the parameter invariants:
// 1 <= MinQuality <= InitialQuality <= 100, CoarseStep > FineStep >= 1,
// ToleranceBytes >= 0.
func (p Params) Validate() error {
	switch {
	case p.InitialQuality < MinValidQuality || p.InitialQuality > MaxValidQuality:
		return fmt.Errorf("%w: initial quality %d outside %d-%d",
			ErrInvalidParams, p.InitialQuality, MinValidQuality, MaxValidQuality)
	case p.MinQuality < MinValidQuality || p.MinQuality > MaxValidQuality:
		return fmt.Errorf("%w: min quality %d outside %d-%d",
			ErrInvalidParams, p.MinQuality, MinValidQuality, MaxValidQuality)
	case p.MinQuality > p.InitialQuality:
		return fmt.Errorf("%w: min quality %d above initial quality %d",
			ErrInvalidParams, p.MinQuality, p.InitialQuality)
	case p.FineStep < 1:
		return fmt.Errorf("%w: fine step %d must be at least 1", ErrInvalidParams, p.FineStep)
	case p.CoarseStep <= p.FineStep:
		return fmt.Errorf("%w: coarse step %d must exceed fine step %d",
			ErrInvalidParams, p.CoarseStep, p.FineStep)
	case p.ToleranceBytes < 0:
		return fmt.Errorf("%w: negative tolerance %d", ErrInvalidParams, p.ToleranceBytes)
	}
	return nil
}

// MaxProbes is the encode budget of one search over a well-behaved
// encoder: descent steps, bisection steps and the corrective encode.
// Bisection starts from a bracket at most CoarseStep+FineStep-1 wide
// (FineStep-1 of that only when no descent encode fit) and each encode
// leaves at most the larger half.
func (p Params) MaxProbes() int {
	descent := (p.InitialQuality-p.MinQuality)/p.CoarseStep + 1
	refine := 0
	for w := p.CoarseStep + p.FineStep - 1; w > p.FineStep; w = (w + 1) / 2 {
		refine++
	}
	return descent + refine + 1
}

func clampQuality(q int) int {
	if q < MinValidQuality {
		return MinValidQuality
	}
	if q > MaxValidQuality {
		return MaxValidQuality
	}
	return q
}
