// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package poststrat

import (
	"fmt"
	"math"
	"sort"

	"github.com/danielhkuo/mrpcast/design"
	"github.com/danielhkuo/mrpcast/models"
)

// Frame is a post-stratification frame encoded with a schema.
type Frame struct {
	matrix     *design.Matrix
	weights    []float64
	cellArea   []int
	areaCodes  []string
	areaWeight []float64
	total      float64
}

// NewFrame encodes the cells once. Pass the schema stored on the posterior;
// Aggregate rejects a frame encoded with any other column layout.
func NewFrame(schema *design.Schema, cells []models.PostStratificationCell) (*Frame, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("frame has no cells")
	}

	m, err := design.Encode(schema, cells)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	f := &Frame{
		matrix:   m,
		weights:  make([]float64, len(cells)),
		cellArea: make([]int, len(cells)),
	}

	areaPos := make(map[string]int)
	for _, c := range cells {
		if c.Area == "" {
			return nil, fmt.Errorf("frame cell without area code")
		}
		areaPos[c.Area] = 0
	}
	f.areaCodes = make([]string, 0, len(areaPos))
	for code := range areaPos {
		f.areaCodes = append(f.areaCodes, code)
	}
	sort.Strings(f.areaCodes)
	for i, code := range f.areaCodes {
		areaPos[code] = i
	}
	f.areaWeight = make([]float64, len(f.areaCodes))

	for i, c := range cells {
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return nil, fmt.Errorf("cell %d (area %s): invalid weight %v", i, c.Area, c.Weight)
		}
		a := areaPos[c.Area]
		f.weights[i] = c.Weight
		f.cellArea[i] = a
		f.areaWeight[a] += c.Weight
		f.total += c.Weight
	}
	return f, nil
}

// Cells is the number of frame rows.
func (f *Frame) Cells() int {
	return len(f.weights)
}

// Areas lists the frame's area codes, sorted.
func (f *Frame) Areas() []string {
	return append([]string(nil), f.areaCodes...)
}

// AreaWeight returns the total weight of an area.
func (f *Frame) AreaWeight(code string) (float64, bool) {
	i := sort.SearchStrings(f.areaCodes, code)
	if i == len(f.areaCodes) || f.areaCodes[i] != code {
		return 0, false
	}
	return f.areaWeight[i], true
}

// TotalWeight is the sum of all cell weights.
func (f *Frame) TotalWeight() float64 {
	return f.total
}
