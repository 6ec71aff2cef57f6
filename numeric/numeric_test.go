// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvLogit(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"zero", 0, 0.5},
		{"one", 1, 0.7310585786300049},
		{"minus one", -1, 0.2689414213699951},
		{"large positive", 800, 1},
		{"large negative", -800, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InvLogit(tt.x)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLogitRoundTrip(t *testing.T) {
	for _, p := range []float64{0.01, 0.25, 0.5, 0.75, 0.99} {
		assert.InDelta(t, p, InvLogit(Logit(p)), 1e-12)
	}
}

func TestLog1pExp(t *testing.T) {
	assert.InDelta(t, math.Log(2), Log1pExp(0), 1e-12)
	assert.InDelta(t, 1000.0, Log1pExp(1000), 1e-9)
	assert.InDelta(t, 0.0, Log1pExp(-1000), 1e-12)
	assert.False(t, math.IsInf(Log1pExp(1000), 0))
}

func TestWeightedMean(t *testing.T) {
	values := []float64{0.2, 0.4, 0.9}
	weights := []float64{1, 3, 6}

	got, ok := WeightedMean(values, weights)
	assert.True(t, ok)
	assert.InDelta(t, (0.2*1+0.4*3+0.9*6)/10.0, got, 1e-12)

	_, ok = WeightedMean(values, []float64{0, 0, 0})
	assert.False(t, ok)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 0.9))
	assert.Equal(t, 3.0, Percentile(sorted, 0.5))
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 5.0, Percentile(sorted, 1))
	assert.InDelta(t, 1.4, Percentile(sorted, 0.1), 1e-12)
}

func TestSummarize(t *testing.T) {
	draws := []float64{0.5, 0.1, 0.3, 0.2, 0.4}

	s := Summarize(draws, 0.8)
	assert.InDelta(t, 0.3, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(0.025), s.SD, 1e-12)
	assert.InDelta(t, 0.14, s.Lower, 1e-12)
	assert.InDelta(t, 0.46, s.Upper, 1e-12)

	// Input order must be left alone
	assert.Equal(t, []float64{0.5, 0.1, 0.3, 0.2, 0.4}, draws)

	single := Summarize([]float64{0.42}, 0.9)
	assert.Equal(t, 0.42, single.Mean)
	assert.Equal(t, 0.0, single.SD)
}

func TestAlmostEqual(t *testing.T) {
	assert.True(t, AlmostEqual(100, 100.0009, 1e-5))
	assert.False(t, AlmostEqual(100, 100.01, 1e-5))
	assert.True(t, AlmostEqual(0, 1e-9, 1e-5))
}
