package search

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// model is a synthetic encoder: size as a pure function of quality.
type model func(q int) int64

func (m model) encoder(t *testing.T, calls *[]int) Encoder {
	return EncoderFunc(func(_ context.Context, q int) (int64, error) {
		if q < MinValidQuality || q > MaxValidQuality {
			t.Fatalf("encode outside valid range: %d", q)
		}
		if calls != nil {
			*calls = append(*calls, q)
		}
		return m(q), nil
	})
}

func powModel(q int) int64 { return int64(500 * math.Pow(float64(q), 1.5)) }

// stepModel grows by 1000 bytes every ten quality points.
func stepModel(q int) int64 { return int64(5000 + 1000*(q/10)) }

// bandReachable reports whether any quality in [min, initial] lands in band.
func bandReachable(m model, p Params, target int64) bool {
	for q := p.MinQuality; q <= p.InitialQuality; q++ {
		if s := m(q); s <= target && s >= target-p.ToleranceBytes {
			return true
		}
	}
	return false
}

func TestSearch_ConcreteScenario(t *testing.T) {
	p := DefaultParams()
	var calls []int
	res, err := Search(context.Background(), model(powModel).encoder(t, &calls), 100_000, p)
	require.NoError(t, err)

	assert.Equal(t, 32, res.Quality)
	assert.Equal(t, powModel(32), res.Size)
	assert.True(t, res.WithinBudget)
	assert.True(t, res.InBand)
	assert.GreaterOrEqual(t, res.Size, int64(100_000-10_240))
	assert.LessOrEqual(t, res.Size, int64(100_000))

	// 95..30 in coarse steps, then a single refinement encode at 32.
	assert.Len(t, calls, 15)
	assert.Equal(t, 30, calls[13])
	assert.Equal(t, 32, calls[14])
	assert.Equal(t, len(calls), res.Probes)
}

func TestSearch_MonotonicConvergence(t *testing.T) {
	cases := []struct {
		name string
		m    model
		tol  int64
	}{
		{"pow", powModel, 10_240},
		{"pow-tight", powModel, 4_000},
		{"step", stepModel, 1_500},
		{"step-tight", stepModel, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			p.ToleranceBytes = tc.tol
			for target := int64(1_000); target <= 500_000; target += 997 {
				res, err := Search(context.Background(), tc.m.encoder(t, nil), target, p)
				require.NoError(t, err)
				assert.Equal(t, tc.m(res.Quality), res.Size)
				if bandReachable(tc.m, p, target) {
					assert.Truef(t, res.InBand, "target %d: size %d at q%d outside band", target, res.Size, res.Quality)
				}
				if tc.m(p.MinQuality) <= target {
					assert.Truef(t, res.WithinBudget, "target %d: size %d over budget", target, res.Size)
				}
			}
		})
	}
}

// randomStepModel builds a non-decreasing size curve with flat runs and
// jumps of very different heights, the shape real codecs produce at
// quality thresholds.
func randomStepModel(rng *rand.Rand) model {
	sizes := make([]int64, MaxValidQuality+1)
	v := int64(100 + rng.Intn(5_000))
	for q := range sizes {
		switch rng.Intn(4) {
		case 0, 1:
		case 2:
			v += int64(1 + rng.Intn(3_000))
		default:
			v += int64(1 + rng.Intn(30_000))
		}
		sizes[q] = v
	}
	return func(q int) int64 { return sizes[q] }
}

func TestSearch_RandomStepConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for coarse := 2; coarse <= 13; coarse++ {
		for i := 0; i < 400; i++ {
			m := randomStepModel(rng)
			p := Params{
				InitialQuality: 60 + rng.Intn(41),
				MinQuality:     1 + rng.Intn(30),
				CoarseStep:     coarse,
				FineStep:       1,
				ToleranceBytes: []int64{0, 500, 1_000, 5_000, 20_000}[rng.Intn(5)],
			}
			target := int64(50 + rng.Intn(int(m(MaxValidQuality))+1_000))

			res, err := Search(context.Background(), m.encoder(t, nil), target, p)
			require.NoError(t, err)
			assert.Equal(t, m(res.Quality), res.Size)
			assert.LessOrEqualf(t, res.Probes, p.MaxProbes(), "params %+v target %d", p, target)
			if bandReachable(m, p, target) {
				assert.Truef(t, res.InBand, "params %+v target %d: size %d at q%d outside band",
					p, target, res.Size, res.Quality)
			}
			if m(p.MinQuality) <= target {
				assert.Truef(t, res.WithinBudget, "params %+v target %d: over budget", p, target)
			}
		}
	}
}

func TestSearch_BandBetweenBisectionSteps(t *testing.T) {
	// Only quality 59 lands in the band; 58 fits with room to spare.
	m := model(func(q int) int64 {
		switch {
		case q <= 58:
			return 90_000
		case q == 59:
			return 99_500
		}
		return 110_000
	})
	p := Params{InitialQuality: 95, MinQuality: 10, CoarseStep: 7, FineStep: 1, ToleranceBytes: 1_000}

	var calls []int
	res, err := Search(context.Background(), m.encoder(t, &calls), 100_000, p)
	require.NoError(t, err)
	assert.Equal(t, 59, res.Quality)
	assert.True(t, res.InBand)
	assert.Equal(t, []int{95, 88, 81, 74, 67, 60, 53, 56, 58, 59}, calls)
}

func TestSearch_CorrectiveEncodeWithinBound(t *testing.T) {
	p := DefaultParams()
	descent := []int{95, 90, 85, 80, 75, 70, 65, 60, 55, 50, 45, 40, 35, 30, 25, 20, 15, 10}

	t.Run("overshoot after bisection", func(t *testing.T) {
		m := model(func(q int) int64 {
			switch {
			case q <= 10:
				return 50_000
			case q <= 12:
				return 60_000
			}
			return 120_000 + 1_000*int64(q)
		})
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

		var calls []int
		res, err := Search(context.Background(), m.encoder(t, &calls), 100_000, p, WithLogger(logger))
		require.NoError(t, err)
		assert.Equal(t, 12, res.Quality)
		assert.True(t, res.WithinBudget)
		assert.Equal(t, append(descent, 12, 13, 12), calls)
		assert.Empty(t, logs.String(), "monotone encoder must not warn")
	})

	t.Run("worst case uses the whole budget", func(t *testing.T) {
		m := model(func(q int) int64 {
			switch {
			case q <= 10:
				return 50_000
			case q <= 13:
				return 60_000
			}
			return 120_000 + 1_000*int64(q)
		})
		var calls []int
		res, err := Search(context.Background(), m.encoder(t, &calls), 100_000, p)
		require.NoError(t, err)
		assert.Equal(t, 13, res.Quality)
		assert.Equal(t, append(descent, 12, 13, 14, 13), calls)
		assert.Equal(t, p.MaxProbes(), res.Probes)
	})
}

func TestSearch_BoundedEncodes(t *testing.T) {
	for _, p := range []Params{
		DefaultParams(),
		{InitialQuality: 90, MinQuality: 20, CoarseStep: 10, FineStep: 1, ToleranceBytes: 2_000},
		{InitialQuality: 100, MinQuality: 1, CoarseStep: 8, FineStep: 2, ToleranceBytes: 5_000},
	} {
		for target := int64(500); target <= 600_000; target += 7_919 {
			res, err := Search(context.Background(), model(powModel).encoder(t, nil), target, p)
			require.NoError(t, err)
			assert.LessOrEqualf(t, res.Probes, p.MaxProbes(), "params %+v target %d", p, target)
		}
	}
}

func TestSearch_Floor(t *testing.T) {
	huge := model(func(q int) int64 { return 1_000_000 + int64(q) })

	t.Run("floor reached in descent", func(t *testing.T) {
		var calls []int
		res, err := Search(context.Background(), huge.encoder(t, &calls), 1_000, DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, 10, res.Quality)
		assert.Equal(t, huge(10), res.Size)
		assert.False(t, res.WithinBudget)
		assert.False(t, res.InBand)
		assert.Len(t, calls, 18)
	})

	t.Run("floor between coarse steps", func(t *testing.T) {
		p := DefaultParams()
		p.MinQuality = 12
		res, err := Search(context.Background(), huge.encoder(t, nil), 1_000, p)
		require.NoError(t, err)
		assert.Equal(t, 12, res.Quality)
		assert.Equal(t, huge(12), res.Size)
		assert.False(t, res.WithinBudget)
	})
}

func TestSearch_Ceiling(t *testing.T) {
	var calls []int
	small := model(func(q int) int64 { return int64(q) * 10 })
	p := DefaultParams()

	res, err := Search(context.Background(), small.encoder(t, &calls), 100_000, p)
	require.NoError(t, err)
	assert.Equal(t, p.InitialQuality, res.Quality)
	assert.GreaterOrEqual(t, res.Quality, p.InitialQuality-p.CoarseStep)
	assert.Equal(t, []int{95}, calls)
}

func TestSearch_InitialAtMaxQuality(t *testing.T) {
	p := Params{InitialQuality: 100, MinQuality: 1, CoarseStep: 30, FineStep: 1, ToleranceBytes: 0}
	huge := model(func(q int) int64 { return 1_000_000 })
	res, err := Search(context.Background(), huge.encoder(t, nil), 10, p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quality)
}

func TestSearch_Deterministic(t *testing.T) {
	p := DefaultParams()
	var first, second []int
	r1, err := Search(context.Background(), model(powModel).encoder(t, &first), 250_000, p)
	require.NoError(t, err)
	r2, err := Search(context.Background(), model(powModel).encoder(t, &second), 250_000, p)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, first, second)
}

func TestSearch_EncoderErrorPropagates(t *testing.T) {
	errBoom := errors.New("codec rejected parameters")
	var calls int
	enc := EncoderFunc(func(_ context.Context, q int) (int64, error) {
		calls++
		if q == 85 {
			return 0, errBoom
		}
		return 1 << 30, nil
	})

	_, err := Search(context.Background(), enc, 1_000, DefaultParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestSearch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []Attempt
	observer := WithObserver(func(a Attempt) {
		seen = append(seen, a)
		if len(seen) == 3 {
			cancel()
		}
	})
	_, err := Search(ctx, model(powModel).encoder(t, nil), 1_000, DefaultParams(), observer)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, seen, 3)
}

func TestSearch_NonMonotonicEncoderFlagged(t *testing.T) {
	// Quality 70 encodes larger than quality 75.
	odd := model(func(q int) int64 {
		if q == 70 {
			return 500_000
		}
		return int64(q) * 3_000
	})
	res, err := Search(context.Background(), odd.encoder(t, nil), 150_000, DefaultParams())
	require.NoError(t, err)
	assert.Positive(t, res.Anomalies)
}

func TestSearch_InvalidInput(t *testing.T) {
	enc := model(powModel).encoder(t, nil)

	_, err := Search(context.Background(), enc, 0, DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidBudget)

	bad := []Params{
		{InitialQuality: 0, MinQuality: 1, CoarseStep: 5, FineStep: 1},
		{InitialQuality: 101, MinQuality: 10, CoarseStep: 5, FineStep: 1},
		{InitialQuality: 50, MinQuality: 60, CoarseStep: 5, FineStep: 1},
		{InitialQuality: 95, MinQuality: 10, CoarseStep: 1, FineStep: 1},
		{InitialQuality: 95, MinQuality: 10, CoarseStep: 5, FineStep: 0},
		{InitialQuality: 95, MinQuality: 10, CoarseStep: 5, FineStep: 1, ToleranceBytes: -1},
	}
	for _, p := range bad {
		_, err := Search(context.Background(), enc, 1_000, p)
		assert.ErrorIsf(t, err, ErrInvalidParams, "params %+v", p)
	}
}

func TestParams_MaxProbes(t *testing.T) {
	assert.Equal(t, 22, DefaultParams().MaxProbes())
	assert.Equal(t, 13, Params{InitialQuality: 90, MinQuality: 20, CoarseStep: 10, FineStep: 1}.MaxProbes())
	assert.Equal(t, 17, Params{InitialQuality: 100, MinQuality: 1, CoarseStep: 8, FineStep: 2}.MaxProbes())
}
