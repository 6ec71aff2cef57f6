// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package model

import (
	"fmt"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/danielhkuo/mrpcast/design"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
)

// Data is what the sampling engine receives.
type Data struct {
	N      int
	K      int
	X      *mat.Dense
	Y      []int
	AreaID []int // 1..J
	J      int
	L      int
	Z      *mat.Dense // extended model only
}

// Validate checks that every vector agrees with N and that ids are in 1..J.
func (d *Data) Validate() error {
	if d.N == 0 {
		return &mrperr.DimensionMismatchError{What: "observations", Want: 1, Got: 0}
	}
	if d.X != nil {
		r, c := d.X.Dims()
		if r != d.N {
			return &mrperr.DimensionMismatchError{What: "design matrix rows", Want: d.N, Got: r}
		}
		if c != d.K {
			return &mrperr.DimensionMismatchError{What: "design matrix columns", Want: d.K, Got: c}
		}
	} else if d.K != 0 {
		return &mrperr.DimensionMismatchError{What: "design matrix columns", Want: d.K, Got: 0}
	}
	if len(d.Y) != d.N {
		return &mrperr.DimensionMismatchError{What: "outcome vector", Want: d.N, Got: len(d.Y)}
	}
	if len(d.AreaID) != d.N {
		return &mrperr.DimensionMismatchError{What: "area-id vector", Want: d.N, Got: len(d.AreaID)}
	}
	for i, id := range d.AreaID {
		if id < 1 || id > d.J {
			return fmt.Errorf("row %d: area id %d outside 1..%d: %w", i, id, d.J, mrperr.ErrDimensionMismatch)
		}
	}
	if d.L > 0 {
		if d.Z == nil {
			return &mrperr.DimensionMismatchError{What: "area covariate columns", Want: d.L, Got: 0}
		}
		r, c := d.Z.Dims()
		if r != d.N {
			return &mrperr.DimensionMismatchError{What: "area covariate rows", Want: d.N, Got: r}
		}
		if c != d.L {
			return &mrperr.DimensionMismatchError{What: "area covariate columns", Want: d.L, Got: c}
		}
	}
	return nil
}

// Prepare encodes cleaned survey records into engine data for spec.
// The schema, area index, and covariates are the objects the posterior
// will carry to the prediction path.
func Prepare(spec *Spec, schema *design.Schema, areas *design.AreaIndex, covs *design.AreaCovariates, records []models.IndividualRecord) (*Data, error) {
	if len(records) == 0 {
		return nil, &mrperr.DimensionMismatchError{What: "survey records", Want: 1, Got: 0}
	}
	if !slices.Equal(spec.Columns, schema.Columns()) {
		return nil, &mrperr.EncodingError{
			Variable: "schema",
			Level:    schema.Fingerprint(),
			Row:      -1,
			Reason:   "model columns differ from schema columns",
		}
	}

	m, err := design.Encode(schema, records)
	if err != nil {
		return nil, fmt.Errorf("encode survey: %w", err)
	}

	codes := make([]string, len(records))
	y := make([]int, len(records))
	for i, r := range records {
		if r.Vote != 0 && r.Vote != 1 {
			return nil, &mrperr.EncodingError{Variable: "vote", Level: strconv.Itoa(r.Vote), Row: i, Reason: "non-binary outcome"}
		}
		y[i] = r.Vote
		codes[i] = r.Area
	}

	ids := make([]int, len(records))
	for i, code := range codes {
		id, ok := areas.Lookup(code)
		if !ok {
			return nil, &mrperr.EncodingError{Variable: "area", Level: code, Row: i}
		}
		ids[i] = id
	}

	d := &Data{
		N:      len(records),
		K:      schema.Width(),
		X:      m.X,
		Y:      y,
		AreaID: ids,
		J:      areas.Len(),
	}

	if spec.Variant == Extended {
		if covs == nil {
			return nil, fmt.Errorf("extended model requires area covariates")
		}
		if !slices.Equal(spec.AreaCovariates, covs.Names()) {
			return nil, fmt.Errorf("model covariates %v differ from table %v", spec.AreaCovariates, covs.Names())
		}
		z, err := covs.Broadcast(codes)
		if err != nil {
			return nil, fmt.Errorf("broadcast area covariates: %w", err)
		}
		d.L = len(spec.AreaCovariates)
		d.Z = z
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
