// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
	"github.com/danielhkuo/mrpcast/numeric"
)

// DefaultShareTolerance is the relative tolerance on party shares summing to 100.
const DefaultShareTolerance = 1e-5

type ResultsOptions struct {
	// Covariates names the area-level covariate columns; every other
	// column except code, name and electorate is a party share.
	Covariates     []string
	ShareTolerance float64
	// TargetParty, when set, must have a share in at least one area.
	// Areas where it stood no candidate still read as an explicit zero.
	TargetParty string
}

// ReadResults reads one row per area. Party shares are percentages; a
// blank share means the party stood no candidate there. Headers are
// mapped to party codes through the recode table; headers sharing a code
// are summed.
func ReadResults(r io.Reader, t *RecodeTable, opts ResultsOptions) ([]models.AreaAggregate, error) {
	if opts.ShareTolerance <= 0 {
		opts.ShareTolerance = DefaultShareTolerance
	}

	tab, err := newTable(r)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	codeCol, nameCol, elecCol := t.Column(ColCode), t.Column(ColName), t.Column(ColElectorate)
	if err := tab.require(codeCol, elecCol); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	if err := tab.require(opts.Covariates...); err != nil {
		return nil, fmt.Errorf("results covariates: %w", err)
	}

	isCov := make(map[string]bool, len(opts.Covariates))
	for _, c := range opts.Covariates {
		isCov[c] = true
	}
	var parties []string
	partyOf := make(map[string]string)
	for _, h := range tab.header {
		if h == codeCol || h == nameCol || h == elecCol || isCov[h] {
			continue
		}
		parties = append(parties, h)
		partyOf[h] = t.ResultsParty(h)
	}
	if len(parties) == 0 {
		return nil, fmt.Errorf("results: no party share columns")
	}

	seen := make(map[string]bool)
	var areas []models.AreaAggregate
	for {
		rec, err := tab.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("results: %w", err)
		}

		a := models.AreaAggregate{
			Code:   tab.get(rec, codeCol),
			Name:   tab.get(rec, nameCol),
			Shares: make(map[string]float64),
		}
		if a.Code == "" {
			return nil, fmt.Errorf("results line %d: empty area code", tab.line)
		}
		if seen[a.Code] {
			return nil, fmt.Errorf("results line %d: duplicate area %q", tab.line, a.Code)
		}
		seen[a.Code] = true

		if a.Electorate, err = parseNumber(tab.get(rec, elecCol)); err != nil || a.Electorate <= 0 {
			return nil, fmt.Errorf("results line %d: invalid electorate %q", tab.line, tab.get(rec, elecCol))
		}

		var sum float64
		for _, p := range parties {
			raw := tab.get(rec, p)
			if raw == "" {
				continue
			}
			v, err := parseNumber(raw)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("results line %d: invalid share %q for %s", tab.line, raw, p)
			}
			a.Shares[partyOf[p]] += v
			sum += v
		}
		if len(a.Shares) == 0 {
			return nil, fmt.Errorf("results line %d: area %s has no party shares", tab.line, a.Code)
		}
		if !numeric.AlmostEqual(sum, 100, opts.ShareTolerance) {
			return nil, fmt.Errorf("results line %d: area %s shares sum to %v, want 100", tab.line, a.Code, sum)
		}

		if len(opts.Covariates) > 0 {
			a.Covariates = make(map[string]float64, len(opts.Covariates))
			for _, c := range opts.Covariates {
				v, err := parseNumber(tab.get(rec, c))
				if err != nil {
					return nil, fmt.Errorf("results line %d: invalid covariate %s: %w", tab.line, c, err)
				}
				a.Covariates[c] = v
			}
		}
		areas = append(areas, a)
	}

	if len(areas) == 0 {
		return nil, fmt.Errorf("results: no areas")
	}
	if opts.TargetParty != "" && !standsAnywhere(areas, opts.TargetParty) {
		return nil, &mrperr.EncodingError{
			Variable: "party",
			Level:    opts.TargetParty,
			Row:      -1,
			Reason:   "no share in any results area for target party",
		}
	}
	return areas, nil
}

func standsAnywhere(areas []models.AreaAggregate, party string) bool {
	for _, a := range areas {
		if _, ok := a.Shares[party]; ok {
			return true
		}
	}
	return false
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
