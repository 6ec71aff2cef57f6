// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package design

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/danielhkuo/mrpcast/models"
)

// AreaCovariates holds area-level predictors for the extended model.
// Centre and scale are fixed when the table is built so that the
// training and the prediction rows see the same transformation.
type AreaCovariates struct {
	names  []string
	values map[string][]float64
	center []float64
	scale  []float64
}

// NewAreaCovariates extracts the named covariates from the area table.
// With standardize set, each covariate is centred and scaled by its
// across-area mean and standard deviation.
func NewAreaCovariates(areas []models.AreaAggregate, names []string, standardize bool) (*AreaCovariates, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no area covariates named")
	}

	c := &AreaCovariates{
		names:  append([]string(nil), names...),
		values: make(map[string][]float64, len(areas)),
		center: make([]float64, len(names)),
		scale:  make([]float64, len(names)),
	}

	raw := make([][]float64, len(names))
	for _, a := range areas {
		row := make([]float64, len(names))
		for j, name := range names {
			v, ok := a.Covariates[name]
			if !ok {
				return nil, fmt.Errorf("area %q has no covariate %q", a.Code, name)
			}
			row[j] = v
			raw[j] = append(raw[j], v)
		}
		c.values[a.Code] = row
	}

	for j := range names {
		c.scale[j] = 1
		if !standardize || len(raw[j]) < 2 {
			continue
		}
		mean, sd := stat.MeanStdDev(raw[j], nil)
		c.center[j] = mean
		if sd > 0 {
			c.scale[j] = sd
		}
	}
	return c, nil
}

// Names returns covariate names in column order.
func (c *AreaCovariates) Names() []string {
	return append([]string(nil), c.names...)
}

// Row returns the transformed covariates of an area.
func (c *AreaCovariates) Row(code string) ([]float64, bool) {
	raw, ok := c.values[code]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(raw))
	for j, v := range raw {
		out[j] = (v - c.center[j]) / c.scale[j]
	}
	return out, true
}

// Codes lists the areas with covariates, sorted.
func (c *AreaCovariates) Codes() []string {
	codes := make([]string, 0, len(c.values))
	for code := range c.values {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Broadcast builds Z with one row per entry of areaCodes, each row a copy
// of that area's transformed covariates.
func (c *AreaCovariates) Broadcast(areaCodes []string) (*mat.Dense, error) {
	if len(areaCodes) == 0 {
		return nil, fmt.Errorf("no rows to broadcast")
	}
	z := mat.NewDense(len(areaCodes), len(c.names), nil)
	for i, code := range areaCodes {
		row, ok := c.Row(code)
		if !ok {
			return nil, fmt.Errorf("row %d: area %q has no covariates", i, code)
		}
		z.SetRow(i, row)
	}
	return z, nil
}
