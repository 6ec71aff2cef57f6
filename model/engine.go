// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package model

import "context"

// Engine is the posterior sampling backend. The core only depends on this
// request/response contract, so backends can be swapped freely.
type Engine interface {
	// MaxParallelChains reports how many chains may run at once.
	// Callers query it before dispatch and never request more.
	MaxParallelChains() int

	// Sample runs req.Chains independent chains of req.Iterations
	// iterations each, the first req.Warmup of which are discarded.
	Sample(ctx context.Context, req SampleRequest) (*SampleResponse, error)
}

type SampleRequest struct {
	Spec       *Spec
	Data       *Data
	Chains     int
	Parallel   int
	Iterations int
	Warmup     int
	Seed       uint64
	Retain     []string
}

// Kept is the number of post-warmup draws per chain.
func (r SampleRequest) Kept() int {
	return r.Iterations - r.Warmup
}

// SampleResponse carries retained draws as param → chain → iteration.
// Rhat and Acceptance are optional; missing R-hat values are computed
// by Fit.
type SampleResponse struct {
	Draws      map[string][][]float64
	Rhat       map[string]float64
	Acceptance map[string]float64
}
