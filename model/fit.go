// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/danielhkuo/mrpcast/design"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
)

// Posterior is a fitted model: the draws plus every object the
// prediction path must reuse (schema, area index, covariate table).
type Posterior struct {
	Spec       *Spec
	Schema     *design.Schema
	Areas      *design.AreaIndex
	Covariates *design.AreaCovariates
	Draws      *Draws

	rhat       map[string]float64
	Converged  bool
	WorstParam string
	WorstRhat  float64
	Acceptance map[string]float64
}

// NewPosterior assembles a posterior and flags it converged when every
// parameter in rhat is below threshold. A threshold that is unset or
// looser than DefaultRhatThreshold falls back to the default.
// Every retained parameter of spec must be present in draws.
func NewPosterior(spec *Spec, schema *design.Schema, areas *design.AreaIndex, covs *design.AreaCovariates, draws *Draws, rhat map[string]float64, threshold float64) (*Posterior, error) {
	if threshold <= 0 || threshold > DefaultRhatThreshold {
		threshold = DefaultRhatThreshold
	}
	for _, name := range spec.ParamNames(areas.Len()) {
		if !draws.Has(name) {
			return nil, fmt.Errorf("posterior is missing parameter %q", name)
		}
	}
	if spec.Variant == Extended && covs == nil {
		return nil, fmt.Errorf("extended posterior requires area covariates")
	}

	p := &Posterior{
		Spec:       spec,
		Schema:     schema,
		Areas:      areas,
		Covariates: covs,
		Draws:      draws,
		rhat:       make(map[string]float64, len(rhat)),
	}
	for k, v := range rhat {
		p.rhat[k] = v
	}
	p.WorstParam, p.WorstRhat = WorstRhat(p.rhat)
	p.Converged = len(p.rhat) > 0 && !math.IsNaN(p.WorstRhat) && p.WorstRhat < threshold
	return p, nil
}

// Rhat returns the diagnostic of one parameter.
func (p *Posterior) Rhat(name string) (float64, bool) {
	r, ok := p.rhat[name]
	return r, ok
}

// RequireConverged fails with a ConvergenceError for a non-converged posterior.
func (p *Posterior) RequireConverged() error {
	if p.Converged {
		return nil
	}
	return &mrperr.ConvergenceError{Parameter: p.WorstParam, Rhat: p.WorstRhat}
}

// FitRequest bundles everything Fit needs.
type FitRequest struct {
	Spec       *Spec
	Schema     *design.Schema
	Areas      *design.AreaIndex
	Covariates *design.AreaCovariates
	Records    []models.IndividualRecord

	Chains        int
	Iterations    int
	Warmup        int
	Seed          uint64
	RhatThreshold float64
}

// Fit prepares the data, dispatches the chains to engine, and returns the
// posterior with its convergence diagnostics. A non-converged fit is not an
// error here; the aggregator refuses it.
func Fit(ctx context.Context, engine Engine, req FitRequest) (*Posterior, error) {
	if req.Chains < 1 {
		return nil, fmt.Errorf("chains must be positive, got %d", req.Chains)
	}
	if req.Warmup < 0 || req.Iterations <= req.Warmup {
		return nil, fmt.Errorf("iterations (%d) must exceed warmup (%d)", req.Iterations, req.Warmup)
	}

	data, err := Prepare(req.Spec, req.Schema, req.Areas, req.Covariates, req.Records)
	if err != nil {
		return nil, fmt.Errorf("prepare data: %w", err)
	}

	// Never ask for more concurrent chains than the engine can run
	parallel := min(req.Chains, engine.MaxParallelChains())
	if parallel < 1 {
		parallel = 1
	}

	retain := req.Spec.ParamNames(data.J)
	sreq := SampleRequest{
		Spec:       req.Spec,
		Data:       data,
		Chains:     req.Chains,
		Parallel:   parallel,
		Iterations: req.Iterations,
		Warmup:     req.Warmup,
		Seed:       req.Seed,
		Retain:     retain,
	}

	slog.Info("sampling started",
		"variant", req.Spec.Variant,
		"observations", data.N,
		"columns", data.K,
		"areas", data.J,
		"chains", req.Chains,
		"parallel", parallel,
		"iterations", req.Iterations,
		"warmup", req.Warmup,
	)
	start := time.Now()

	resp, err := engine.Sample(ctx, sreq)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}

	draws, err := NewDraws(resp.Draws)
	if err != nil {
		return nil, fmt.Errorf("engine draws: %w", err)
	}
	if draws.Chains() != req.Chains {
		return nil, &mrperr.DimensionMismatchError{What: "engine chains", Want: req.Chains, Got: draws.Chains()}
	}

	rhat := make(map[string]float64, len(retain))
	for _, name := range retain {
		if r, ok := resp.Rhat[name]; ok {
			rhat[name] = r
			continue
		}
		chains, ok := draws.ByChain(name)
		if !ok {
			return nil, fmt.Errorf("engine did not return parameter %q", name)
		}
		rhat[name] = SplitRhat(chains)
	}

	post, err := NewPosterior(req.Spec, req.Schema, req.Areas, req.Covariates, draws, rhat, req.RhatThreshold)
	if err != nil {
		return nil, err
	}
	post.Acceptance = resp.Acceptance

	slog.Info("sampling finished",
		"variant", req.Spec.Variant,
		"draws", draws.Len(),
		"converged", post.Converged,
		"worst_param", post.WorstParam,
		"worst_rhat", post.WorstRhat,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return post, nil
}
