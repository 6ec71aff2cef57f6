// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultRhatThreshold is the convergence bar: every retained parameter
// must have split R-hat strictly below it.
const DefaultRhatThreshold = 1.1

// SplitRhat is the potential scale reduction factor over chains split in
// half. It compares between-chain and within-chain variance; values near
// 1 indicate the chains agree. NaN when a half-chain has fewer than two
// draws.
func SplitRhat(chains [][]float64) float64 {
	var halves [][]float64
	for _, c := range chains {
		n := len(c) / 2
		halves = append(halves, c[:n], c[len(c)-n:])
	}
	if len(halves) < 2 {
		return math.NaN()
	}
	n := len(halves[0])
	if n < 2 {
		return math.NaN()
	}

	m := float64(len(halves))
	means := make([]float64, len(halves))
	var w float64
	for i, h := range halves {
		mean, variance := stat.MeanVariance(h, nil)
		means[i] = mean
		w += variance
	}
	w /= m

	b := float64(n) * stat.Variance(means, nil)
	if w == 0 {
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}

	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	return math.Sqrt(varPlus / w)
}

// WorstRhat returns the parameter with the largest R-hat. NaN ranks worst.
func WorstRhat(rhat map[string]float64) (string, float64) {
	worstName := ""
	worst := math.Inf(-1)
	for name, r := range rhat {
		switch {
		case math.IsNaN(r):
			if !math.IsNaN(worst) || name < worstName {
				worstName, worst = name, r
			}
		case math.IsNaN(worst):
		case r > worst || (r == worst && name < worstName):
			worstName, worst = name, r
		}
	}
	return worstName, worst
}
