// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package poststrat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/danielhkuo/mrpcast/model"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
	"github.com/danielhkuo/mrpcast/numeric"
)

// NewAreaPolicy decides what happens to frame areas without survey respondents.
type NewAreaPolicy string

const (
	// NewAreaError rejects frame areas the model never saw.
	NewAreaError NewAreaPolicy = "error"
	// NewAreaPopulationMean predicts them with a zero area intercept.
	NewAreaPopulationMean NewAreaPolicy = "population-mean"
)

// ParseNewAreaPolicy accepts "error" or "population-mean".
func ParseNewAreaPolicy(s string) (NewAreaPolicy, error) {
	switch NewAreaPolicy(s) {
	case NewAreaError, NewAreaPopulationMean:
		return NewAreaPolicy(s), nil
	}
	return "", fmt.Errorf("unknown new-area policy %q", s)
}

const (
	DefaultDraws    = 50
	DefaultInterval = 0.9
)

type Options struct {
	// Draws is the number of posterior draws S to post-stratify.
	Draws int
	// Interval is the central mass reported as lower/upper.
	Interval float64
	NewAreas NewAreaPolicy
	// Parallel caps concurrent draws; 0 means GOMAXPROCS.
	Parallel int
}

func (o Options) withDefaults() Options {
	if o.Draws == 0 {
		o.Draws = DefaultDraws
	}
	if o.Interval <= 0 || o.Interval >= 1 {
		o.Interval = DefaultInterval
	}
	if o.NewAreas == "" {
		o.NewAreas = NewAreaError
	}
	if o.Parallel <= 0 {
		o.Parallel = runtime.GOMAXPROCS(0)
	}
	return o
}

// coefficients holds every parameter the linear predictor reads, already
// resolved from names to draw sequences.
type coefficients struct {
	alpha []float64
	beta  [][]float64 // frame column order
	eta   [][]float64 // frame area order; nil for unseen areas
	gamma [][]float64
	z     [][]float64 // frame area order
}

// Aggregate post-stratifies the posterior over the frame:
// per draw, each cell's probability is weighted into national and area
// shares; point estimates are means over draws, and the per-draw values
// are kept for uncertainty.
func Aggregate(ctx context.Context, post *model.Posterior, frame *Frame, opts Options) (*models.AggregatedEstimate, error) {
	opts = opts.withDefaults()

	if err := post.RequireConverged(); err != nil {
		return nil, err
	}
	picks, err := post.Draws.Thin(opts.Draws)
	if err != nil {
		return nil, err
	}
	if err := post.Schema.Check(frame.matrix); err != nil {
		return nil, err
	}
	if frame.total == 0 {
		return nil, &mrperr.UndefinedAggregateError{}
	}
	for a, w := range frame.areaWeight {
		if w == 0 {
			return nil, &mrperr.UndefinedAggregateError{Area: frame.areaCodes[a]}
		}
	}

	coefs, err := resolve(post, frame, opts.NewAreas)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s := len(picks)
	national := make([]float64, s)
	byArea := make([][]float64, len(frame.areaCodes))
	for a := range byArea {
		byArea[a] = make([]float64, s)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for k, draw := range picks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			nat, areas := aggregateDraw(frame, coefs, draw)
			// Each draw writes only its own slot
			national[k] = nat
			for a, v := range areas {
				byArea[a][k] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	est := &models.AggregatedEstimate{
		Draws:         s,
		Interval:      opts.Interval,
		National:      numeric.Summarize(national, opts.Interval),
		NationalDraws: national,
		Areas:         make([]models.AreaEstimate, len(frame.areaCodes)),
	}
	for a, code := range frame.areaCodes {
		est.Areas[a] = models.AreaEstimate{
			Area:    code,
			Weight:  frame.areaWeight[a],
			Summary: numeric.Summarize(byArea[a], opts.Interval),
			Draws:   byArea[a],
		}
	}

	slog.Info("post-stratification finished",
		"draws", s,
		"cells", frame.Cells(),
		"areas", len(frame.areaCodes),
		"national", est.National.Mean,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return est, nil
}

// resolve looks every coefficient up by its semantic name.
func resolve(post *model.Posterior, frame *Frame, policy NewAreaPolicy) (*coefficients, error) {
	c := &coefficients{}

	alpha, ok := post.Draws.Param(model.ParamIntercept)
	if !ok {
		return nil, fmt.Errorf("posterior has no %s", model.ParamIntercept)
	}
	c.alpha = alpha

	for _, col := range post.Schema.Columns() {
		d, ok := post.Draws.Param(model.BetaParam(col))
		if !ok {
			return nil, &mrperr.EncodingError{Variable: "column", Level: col, Row: -1, Reason: "no coefficient for column"}
		}
		c.beta = append(c.beta, d)
	}

	c.eta = make([][]float64, len(frame.areaCodes))
	for a, code := range frame.areaCodes {
		j, ok := post.Areas.Lookup(code)
		if !ok {
			if policy == NewAreaPopulationMean {
				continue
			}
			return nil, &mrperr.EncodingError{Variable: "area", Level: code, Row: -1, Reason: "area not in fitted index"}
		}
		d, ok := post.Draws.Param(model.EtaParam(j))
		if !ok {
			return nil, fmt.Errorf("posterior has no %s", model.EtaParam(j))
		}
		c.eta[a] = d
	}

	if post.Spec.Variant != model.Extended {
		return c, nil
	}
	for _, name := range post.Spec.AreaCovariates {
		d, ok := post.Draws.Param(model.GammaParam(name))
		if !ok {
			return nil, fmt.Errorf("posterior has no %s", model.GammaParam(name))
		}
		c.gamma = append(c.gamma, d)
	}
	c.z = make([][]float64, len(frame.areaCodes))
	for a, code := range frame.areaCodes {
		row, ok := post.Covariates.Row(code)
		if !ok {
			return nil, &mrperr.EncodingError{Variable: "area covariates", Level: code, Row: -1, Reason: "no covariates for area"}
		}
		c.z[a] = row
	}
	return c, nil
}

// aggregateDraw computes the national and per-area shares for one draw.
func aggregateDraw(frame *Frame, c *coefficients, draw int) (float64, []float64) {
	beta := make([]float64, len(c.beta))
	for k, d := range c.beta {
		beta[k] = d[draw]
	}

	offset := make([]float64, len(frame.areaCodes))
	for a := range offset {
		if c.eta[a] != nil {
			offset[a] = c.eta[a][draw]
		}
		for l, g := range c.gamma {
			offset[a] += g[draw] * c.z[a][l]
		}
	}

	alpha := c.alpha[draw]
	areaSum := make([]float64, len(frame.areaCodes))
	var natSum float64
	for i, w := range frame.weights {
		a := frame.cellArea[i]
		lp := alpha + floats.Dot(frame.matrix.X.RawRowView(i), beta) + offset[a]
		wp := w * numeric.InvLogit(lp)
		natSum += wp
		areaSum[a] += wp
	}

	for a := range areaSum {
		areaSum[a] /= frame.areaWeight[a]
	}
	return natSum / frame.total, areaSum
}
