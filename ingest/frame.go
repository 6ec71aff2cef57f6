// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/danielhkuo/mrpcast/models"
)

// ReadFrame reads post-stratification cells. Every cell needs an area,
// all five demographics and a non-negative weight.
func ReadFrame(r io.Reader, t *RecodeTable) ([]models.PostStratificationCell, error) {
	tab, err := newTable(r)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	cols := []string{t.Column(ColArea), t.Column(ColWeight)}
	for _, v := range demographics {
		cols = append(cols, t.Column(v))
	}
	if err := tab.require(cols...); err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}

	var cells []models.PostStratificationCell
	for {
		rec, err := tab.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame: %w", err)
		}

		c := models.PostStratificationCell{Area: tab.get(rec, t.Column(ColArea))}
		if c.Area == "" {
			return nil, fmt.Errorf("frame line %d: empty area", tab.line)
		}
		w, err := strconv.ParseFloat(tab.get(rec, t.Column(ColWeight)), 64)
		if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("frame line %d: invalid weight %q", tab.line, tab.get(rec, t.Column(ColWeight)))
		}
		c.Weight = w

		levels := make([]string, len(demographics))
		for i, v := range demographics {
			lvl, ok := t.Recode(v, tab.get(rec, t.Column(v)))
			if !ok {
				return nil, fmt.Errorf("frame line %d: missing %s", tab.line, v)
			}
			levels[i] = lvl
		}
		c.Sex, c.Age, c.Housing, c.Grade, c.Education = levels[0], levels[1], levels[2], levels[3], levels[4]
		cells = append(cells, c)
	}

	if len(cells) == 0 {
		return nil, fmt.Errorf("frame: no cells")
	}
	return cells, nil
}

// ScaleToElectorate rescales each area's weights to sum to its electorate.
// Areas whose weights sum to zero are left unchanged.
func ScaleToElectorate(cells []models.PostStratificationCell, areas []models.AreaAggregate) ([]models.PostStratificationCell, error) {
	electorate := make(map[string]float64, len(areas))
	for _, a := range areas {
		electorate[a.Code] = a.Electorate
	}

	totals := make(map[string]float64)
	for _, c := range cells {
		totals[c.Area] += c.Weight
	}
	for code := range totals {
		e, ok := electorate[code]
		if !ok {
			return nil, fmt.Errorf("no electorate for area %q", code)
		}
		if e <= 0 {
			return nil, fmt.Errorf("area %q: electorate must be positive, got %v", code, e)
		}
	}

	out := make([]models.PostStratificationCell, len(cells))
	for i, c := range cells {
		if total := totals[c.Area]; total > 0 {
			c.Weight *= electorate[c.Area] / total
		}
		out[i] = c
	}
	return out, nil
}
