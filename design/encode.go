// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package design

import (
	"gonum.org/v1/gonum/mat"

	"github.com/danielhkuo/mrpcast/mrperr"
)

// Categorical is anything that can report a level per variable.
type Categorical interface {
	Level(variable string) string
}

// Matrix is a dummy-encoded design matrix tied to the schema that built it.
type Matrix struct {
	Schema *Schema
	X      *mat.Dense
}

// Rows is the number of encoded records; X is nil for an empty input.
func (m *Matrix) Rows() int {
	if m.X == nil {
		return 0
	}
	r, _ := m.X.Dims()
	return r
}

// Column returns the indicator values of a named column.
func (m *Matrix) Column(name string) ([]float64, bool) {
	j, ok := m.Schema.Index(name)
	if !ok || m.X == nil {
		return nil, ok
	}
	return mat.Col(nil, j, m.X), true
}

// Encode builds the indicator matrix for rows. Any level outside the
// declared set (including "") fails with an EncodingError naming the row.
func Encode[T Categorical](s *Schema, rows []T) (*Matrix, error) {
	m := &Matrix{Schema: s}
	if len(rows) == 0 {
		return m, nil
	}

	width := s.Width()
	data := make([]float64, len(rows)*width)
	for r, row := range rows {
		for i, v := range s.vars {
			level := row.Level(v.Name)
			col, ok := s.levelCol[i][level]
			if !ok {
				reason := "unseen level"
				if level == "" {
					reason = "missing level"
				}
				return nil, &mrperr.EncodingError{Variable: v.Name, Level: level, Row: r, Reason: reason}
			}
			if col >= 0 {
				data[r*width+col] = 1
			}
		}
	}

	m.X = mat.NewDense(len(rows), width, data)
	return m, nil
}

// Check fails with an EncodingError unless m was encoded with s.
func (s *Schema) Check(m *Matrix) error {
	if m == nil || m.Schema == nil {
		return &mrperr.EncodingError{Variable: "schema", Row: -1, Reason: "matrix has no schema"}
	}
	if m.Schema == s {
		return nil
	}
	if m.Schema.Fingerprint() != s.Fingerprint() {
		return &mrperr.EncodingError{
			Variable: "schema",
			Level:    m.Schema.Fingerprint(),
			Row:      -1,
			Reason:   "column schema differs from fitted schema",
		}
	}
	return nil
}
