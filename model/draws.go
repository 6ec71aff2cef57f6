// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package model

import (
	"fmt"
	"sort"

	"github.com/danielhkuo/mrpcast/mrperr"
)

// Draws is an immutable store of posterior draws, param → chain → iteration.
// NewDraws copies its input and accessors return copies.
type Draws struct {
	params   map[string][][]float64
	names    []string
	chains   int
	perChain int
}

// NewDraws validates that every parameter has the same number of chains
// and every chain the same number of iterations.
func NewDraws(params map[string][][]float64) (*Draws, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters in draws")
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	d := &Draws{
		params:   make(map[string][][]float64, len(params)),
		names:    names,
		chains:   len(params[names[0]]),
		perChain: -1,
	}
	if d.chains == 0 {
		return nil, &mrperr.DimensionMismatchError{What: "chains of " + names[0], Want: 1, Got: 0}
	}

	for _, name := range names {
		chains := params[name]
		if len(chains) != d.chains {
			return nil, &mrperr.DimensionMismatchError{What: "chains of " + name, Want: d.chains, Got: len(chains)}
		}
		copied := make([][]float64, len(chains))
		for c, iters := range chains {
			if d.perChain < 0 {
				d.perChain = len(iters)
			}
			if len(iters) != d.perChain {
				return nil, &mrperr.DimensionMismatchError{What: fmt.Sprintf("draws of %s chain %d", name, c), Want: d.perChain, Got: len(iters)}
			}
			copied[c] = append([]float64(nil), iters...)
		}
		d.params[name] = copied
	}
	return d, nil
}

// Len is the total number of draws across chains.
func (d *Draws) Len() int { return d.chains * d.perChain }

func (d *Draws) Chains() int { return d.chains }

func (d *Draws) PerChain() int { return d.perChain }

// Names lists parameters in sorted order.
func (d *Draws) Names() []string { return append([]string(nil), d.names...) }

// Has reports whether a parameter was retained.
func (d *Draws) Has(name string) bool {
	_, ok := d.params[name]
	return ok
}

// Param returns the chain-concatenated draws of a parameter.
func (d *Draws) Param(name string) ([]float64, bool) {
	chains, ok := d.params[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, d.Len())
	for _, c := range chains {
		out = append(out, c...)
	}
	return out, true
}

// ByChain returns a copy of a parameter's draws split by chain.
func (d *Draws) ByChain(name string) ([][]float64, bool) {
	chains, ok := d.params[name]
	if !ok {
		return nil, false
	}
	out := make([][]float64, len(chains))
	for c, iters := range chains {
		out[c] = append([]float64(nil), iters...)
	}
	return out, true
}

// Thin picks s draw positions spread evenly over the chain-concatenated
// sequence. It fails with InsufficientDrawsError when s exceeds Len.
func (d *Draws) Thin(s int) ([]int, error) {
	total := d.Len()
	if s > total {
		return nil, &mrperr.InsufficientDrawsError{Requested: s, Available: total}
	}
	if s < 1 {
		return nil, fmt.Errorf("draw count must be positive, got %d", s)
	}
	idx := make([]int, s)
	for i := range idx {
		idx[i] = i * total / s
	}
	return idx, nil
}
