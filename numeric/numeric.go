// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package numeric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/danielhkuo/mrpcast/models"
)

// InvLogit is the logistic function, stable for large |x|
func InvLogit(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}

// Logit is the inverse of InvLogit for p in (0, 1)
func Logit(p float64) float64 {
	return math.Log(p) - math.Log1p(-p)
}

// Log1pExp computes log(1 + exp(x)) without overflow
func Log1pExp(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// WeightedMean returns Σ(w·v)/Σw and false when the weights sum to zero
func WeightedMean(values, weights []float64) (float64, bool) {
	var num, den float64
	for i, v := range values {
		num += weights[i] * v
		den += weights[i]
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// Percentile calculates the p-th percentile of sorted data
// p should be in range [0, 1]
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Linear interpolation between closest ranks
	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Summarize reduces a per-draw distribution to mean, sd and a central
// interval of the given mass (e.g. 0.9 → 5th and 95th percentiles).
func Summarize(draws []float64, interval float64) models.Summary {
	if len(draws) == 0 {
		return models.Summary{}
	}

	sorted := make([]float64, len(draws))
	copy(sorted, draws)
	sort.Float64s(sorted)

	tail := (1 - interval) / 2
	s := models.Summary{
		Mean:  stat.Mean(draws, nil),
		Lower: Percentile(sorted, tail),
		Upper: Percentile(sorted, 1-tail),
	}
	if len(draws) > 1 {
		s.SD = stat.StdDev(draws, nil)
	}
	return s
}

// AlmostEqual compares with a relative tolerance, absolute near zero
func AlmostEqual(a, b, relTol float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		return diff <= relTol
	}
	return diff <= relTol*scale
}
