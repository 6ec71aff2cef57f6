// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sampler

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/mrpcast/model"
	"github.com/danielhkuo/mrpcast/numeric"
)

// Target acceptance rates for one-dimensional random-walk proposals
const (
	targetAcceptance = 0.44
	adaptBatch       = 50

	// centred scale updates per iteration
	centredScaleSteps = 5
)

// Acceptance block names reported in the response
const (
	BlockFixed = "fixed"
	BlockArea  = "area"
	BlockScale = "scale"

	// BlockScaleCentred is the tau update with eta held fixed
	BlockScaleCentred = "scale_centred"
)

// Metropolis samples the hierarchical logistic model with adaptive
// component-wise random-walk Metropolis. Area intercepts are
// non-centred (eta_j = tau·z_j) so the scale and the offsets move
// independently when the data are weak. Each iteration then interweaves
// the centred parametrisation: tau is updated with every eta_j held
// fixed and the intercept is drawn exactly with every alpha + eta_j held
// fixed, which keeps both mixing when areas are well measured.
// Step sizes adapt only during warmup.
type Metropolis struct {
	// MaxParallel caps concurrent chains; 0 means GOMAXPROCS.
	MaxParallel int
}

func NewMetropolis() *Metropolis {
	return &Metropolis{}
}

// MaxParallelChains reports the hardware parallelism available to chains.
func (m *Metropolis) MaxParallelChains() int {
	procs := runtime.GOMAXPROCS(0)
	if m.MaxParallel > 0 && m.MaxParallel < procs {
		return m.MaxParallel
	}
	return procs
}

// Sample runs req.Chains chains, at most req.Parallel at a time.
// Each chain owns its state and random stream; they only hand back
// their retained draws.
func (m *Metropolis) Sample(ctx context.Context, req model.SampleRequest) (*model.SampleResponse, error) {
	if req.Spec == nil || req.Data == nil {
		return nil, fmt.Errorf("sample request needs spec and data")
	}
	if err := req.Data.Validate(); err != nil {
		return nil, err
	}
	if req.Chains < 1 || req.Kept() < 1 || req.Warmup < 0 {
		return nil, fmt.Errorf("invalid run length: chains=%d iterations=%d warmup=%d", req.Chains, req.Iterations, req.Warmup)
	}
	if req.Parallel < 1 || req.Parallel > m.MaxParallelChains() {
		return nil, fmt.Errorf("parallel chains %d outside 1..%d", req.Parallel, m.MaxParallelChains())
	}

	results := make([]*chainResult, req.Chains)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Parallel)
	for c := 0; c < req.Chains; c++ {
		g.Go(func() error {
			ch := newChain(req.Spec, req.Data, rand.New(rand.NewPCG(req.Seed, uint64(c)+1)))
			res, err := ch.run(ctx, req.Iterations, req.Warmup)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c, err)
			}
			results[c] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &model.SampleResponse{
		Draws:      make(map[string][][]float64, len(req.Retain)),
		Acceptance: make(map[string]float64),
	}
	for _, name := range req.Retain {
		chains := make([][]float64, req.Chains)
		for c, res := range results {
			d, ok := res.draws[name]
			if !ok {
				return nil, fmt.Errorf("unknown parameter %q", name)
			}
			chains[c] = d
		}
		resp.Draws[name] = chains
	}
	for _, block := range []string{BlockFixed, BlockArea, BlockScale, BlockScaleCentred} {
		var sum float64
		for _, res := range results {
			sum += res.acceptance[block]
		}
		resp.Acceptance[block] = sum / float64(len(results))
	}
	return resp, nil
}

// coef is one regression coefficient with its sparse column.
type coef struct {
	name  string
	value float64
	prior model.Prior
	rows  []int
	vals  []float64
	step  adaptiveStep
}

type adaptiveStep struct {
	logScale  float64
	accepted  int
	tried     int
	batches   int
	postAcc   int
	postTried int
}

func (s *adaptiveStep) size() float64 { return math.Exp(s.logScale) }

func (s *adaptiveStep) record(ok, warmup bool) {
	if warmup {
		s.tried++
		if ok {
			s.accepted++
		}
		if s.tried == adaptBatch {
			s.batches++
			delta := math.Min(0.1, 1/math.Sqrt(float64(s.batches)))
			if float64(s.accepted)/float64(s.tried) > targetAcceptance {
				s.logScale += delta
			} else {
				s.logScale -= delta
			}
			s.accepted, s.tried = 0, 0
		}
		return
	}
	s.postTried++
	if ok {
		s.postAcc++
	}
}

func (s *adaptiveStep) rate() float64 {
	if s.postTried == 0 {
		return 0
	}
	return float64(s.postAcc) / float64(s.postTried)
}

type chain struct {
	spec *model.Spec
	data *model.Data
	rng  *rand.Rand

	coefs  []coef
	z      []float64
	zStep  []adaptiveStep
	logTau float64
	tStep  adaptiveStep
	cStep  adaptiveStep

	areaRows [][]int
	lp       []float64
}

type chainResult struct {
	draws      map[string][]float64
	acceptance map[string]float64
}

func newChain(spec *model.Spec, d *model.Data, rng *rand.Rand) *chain {
	ch := &chain{
		spec:     spec,
		data:     d,
		rng:      rng,
		z:        make([]float64, d.J),
		zStep:    make([]adaptiveStep, d.J),
		areaRows: make([][]int, d.J),
		lp:       make([]float64, d.N),
	}

	all := make([]int, d.N)
	ones := make([]float64, d.N)
	for i := range all {
		all[i] = i
		ones[i] = 1
	}
	ch.coefs = append(ch.coefs, coef{name: model.ParamIntercept, prior: spec.InterceptPrior, rows: all, vals: ones})

	for k := 0; k < d.K; k++ {
		c := coef{name: model.BetaParam(spec.Columns[k]), prior: spec.CoefficientPrior}
		for i := 0; i < d.N; i++ {
			if v := d.X.At(i, k); v != 0 {
				c.rows = append(c.rows, i)
				c.vals = append(c.vals, v)
			}
		}
		ch.coefs = append(ch.coefs, c)
	}
	for l := 0; l < d.L; l++ {
		c := coef{name: model.GammaParam(spec.AreaCovariates[l]), prior: spec.AreaCoefPrior}
		for i := 0; i < d.N; i++ {
			if v := d.Z.At(i, l); v != 0 {
				c.rows = append(c.rows, i)
				c.vals = append(c.vals, v)
			}
		}
		ch.coefs = append(ch.coefs, c)
	}

	for i, id := range d.AreaID {
		ch.areaRows[id-1] = append(ch.areaRows[id-1], i)
	}

	// Dispersed starting points so R-hat can detect chains that never meet
	for i := range ch.coefs {
		ch.coefs[i].value = rng.Float64()*2 - 1
	}
	for j := range ch.z {
		ch.z[j] = rng.Float64()*2 - 1
	}
	ch.logTau = rng.Float64()*2 - 1

	tau := math.Exp(ch.logTau)
	for _, c := range ch.coefs {
		for n, i := range c.rows {
			ch.lp[i] += c.value * c.vals[n]
		}
	}
	for i, id := range d.AreaID {
		ch.lp[i] += tau * ch.z[id-1]
	}
	return ch
}

// deltaLogLik is the change in log-likelihood over rows when each
// lp[rows[n]] moves by shift·vals[n].
func (ch *chain) deltaLogLik(rows []int, vals []float64, shift float64) float64 {
	var delta float64
	for n, i := range rows {
		move := shift
		if vals != nil {
			move *= vals[n]
		}
		old := ch.lp[i]
		nu := old + move
		delta += float64(ch.data.Y[i])*move - (numeric.Log1pExp(nu) - numeric.Log1pExp(old))
	}
	return delta
}

func (ch *chain) accept(logRatio float64) bool {
	if logRatio >= 0 {
		return true
	}
	return math.Log(ch.rng.Float64()) < logRatio
}

func (ch *chain) stepCoef(c *coef, warmup bool) bool {
	proposal := c.value + c.step.size()*ch.rng.NormFloat64()
	shift := proposal - c.value
	logRatio := ch.deltaLogLik(c.rows, c.vals, shift) + c.prior.LogDensity(proposal) - c.prior.LogDensity(c.value)

	ok := ch.accept(logRatio)
	if ok {
		for n, i := range c.rows {
			ch.lp[i] += shift * c.vals[n]
		}
		c.value = proposal
	}
	c.step.record(ok, warmup)
	return ok
}

func (ch *chain) stepArea(j int, warmup bool) bool {
	tau := math.Exp(ch.logTau)
	proposal := ch.z[j] + ch.zStep[j].size()*ch.rng.NormFloat64()
	shift := tau * (proposal - ch.z[j])
	logRatio := ch.deltaLogLik(ch.areaRows[j], nil, shift) - 0.5*(proposal*proposal-ch.z[j]*ch.z[j])

	ok := ch.accept(logRatio)
	if ok {
		for _, i := range ch.areaRows[j] {
			ch.lp[i] += shift
		}
		ch.z[j] = proposal
	}
	ch.zStep[j].record(ok, warmup)
	return ok
}

func (ch *chain) stepScale(warmup bool) bool {
	tau := math.Exp(ch.logTau)
	proposalLog := ch.logTau + ch.tStep.size()*ch.rng.NormFloat64()
	proposal := math.Exp(proposalLog)

	var logRatio float64
	for j, rows := range ch.areaRows {
		logRatio += ch.deltaLogLik(rows, nil, (proposal-tau)*ch.z[j])
	}
	// Prior on tau plus the Jacobian of the log transform
	prior := ch.spec.AreaScalePrior
	logRatio += prior.LogDensity(proposal) - prior.LogDensity(tau) + proposalLog - ch.logTau

	ok := ch.accept(logRatio)
	if ok {
		for j, rows := range ch.areaRows {
			shift := (proposal - tau) * ch.z[j]
			for _, i := range rows {
				ch.lp[i] += shift
			}
		}
		ch.logTau = proposalLog
	}
	ch.tStep.record(ok, warmup)
	return ok
}

// stepScaleCentred updates tau with eta_j = tau·z_j held fixed, so the
// likelihood drops out and only the area prior moves. Under the
// centred form the eta_j are N(0, tau²), which contributes
// -J·log tau - Σeta_j²/(2tau²).
func (ch *chain) stepScaleCentred(warmup bool) bool {
	tau := math.Exp(ch.logTau)
	var ss float64
	for _, z := range ch.z {
		eta := tau * z
		ss += eta * eta
	}
	j := float64(len(ch.z))
	prior := ch.spec.AreaScalePrior
	logTarget := func(u float64) float64 {
		t := math.Exp(u)
		return prior.LogDensity(t) - j*u - ss/(2*t*t) + u
	}

	proposalLog := ch.logTau + ch.cStep.size()*ch.rng.NormFloat64()
	ok := ch.accept(logTarget(proposalLog) - logTarget(ch.logTau))
	if ok {
		ratio := tau / math.Exp(proposalLog)
		for i := range ch.z {
			ch.z[i] *= ratio
		}
		ch.logTau = proposalLog
	}
	ch.cStep.record(ok, warmup)
	return ok
}

// shiftIntercept draws alpha from its exact conditional with every
// mu_j = alpha + tau·z_j held fixed. The linear predictors are unchanged.
func (ch *chain) shiftIntercept() {
	if len(ch.z) == 0 {
		return
	}
	tau := math.Exp(ch.logTau)
	alpha := &ch.coefs[0]
	p := alpha.prior

	var sumMu float64
	for _, z := range ch.z {
		sumMu += alpha.value + tau*z
	}
	tau2 := tau * tau
	prec := 1/(p.Sigma*p.Sigma) + float64(len(ch.z))/tau2
	mean := (p.Mu/(p.Sigma*p.Sigma) + sumMu/tau2) / prec
	next := mean + ch.rng.NormFloat64()/math.Sqrt(prec)

	d := (next - alpha.value) / tau
	for i := range ch.z {
		ch.z[i] -= d
	}
	alpha.value = next
}

func (ch *chain) run(ctx context.Context, iterations, warmup int) (*chainResult, error) {
	kept := iterations - warmup
	draws := make(map[string][]float64, len(ch.coefs)+ch.data.J+1)
	for _, c := range ch.coefs {
		draws[c.name] = make([]float64, 0, kept)
	}
	for j := range ch.z {
		draws[model.EtaParam(j+1)] = make([]float64, 0, kept)
	}
	draws[model.ParamAreaScale] = make([]float64, 0, kept)

	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inWarmup := it < warmup

		for i := range ch.coefs {
			ch.stepCoef(&ch.coefs[i], inWarmup)
		}
		for j := range ch.z {
			ch.stepArea(j, inWarmup)
		}
		ch.stepScale(inWarmup)
		for k := 0; k < centredScaleSteps; k++ {
			ch.stepScaleCentred(inWarmup)
		}
		ch.shiftIntercept()

		if inWarmup {
			continue
		}
		tau := math.Exp(ch.logTau)
		for _, c := range ch.coefs {
			draws[c.name] = append(draws[c.name], c.value)
		}
		for j, z := range ch.z {
			name := model.EtaParam(j + 1)
			draws[name] = append(draws[name], tau*z)
		}
		draws[model.ParamAreaScale] = append(draws[model.ParamAreaScale], tau)
	}

	res := &chainResult{draws: draws, acceptance: make(map[string]float64)}
	var fixed float64
	for _, c := range ch.coefs {
		fixed += c.step.rate()
	}
	res.acceptance[BlockFixed] = fixed / float64(len(ch.coefs))
	var area float64
	for j := range ch.zStep {
		area += ch.zStep[j].rate()
	}
	res.acceptance[BlockArea] = area / float64(len(ch.zStep))
	res.acceptance[BlockScale] = ch.tStep.rate()
	res.acceptance[BlockScaleCentred] = ch.cStep.rate()
	return res, nil
}
