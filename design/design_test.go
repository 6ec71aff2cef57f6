// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package design

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
)

func testRecords() []models.IndividualRecord {
	return []models.IndividualRecord{
		{ID: "1", Area: "E1", Sex: "Male", Age: "16-19", Housing: "Rents", Grade: "DE", Education: "No qualifications", Vote: 1},
		{ID: "2", Area: "E2", Sex: "Female", Age: "45-59", Housing: "Owns", Grade: "AB", Education: "Level 4/5", Vote: 0},
		{ID: "3", Area: "E1", Sex: "Female", Age: "75+", Housing: "Owns", Grade: "C1", Education: "Level 2", Vote: 1},
	}
}

func mustSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(DefaultVariables())
	require.NoError(t, err)
	return s
}

func TestNewSchema_Columns(t *testing.T) {
	s := mustSchema(t)

	// 1 + 7 + 1 + 3 + 4 non-reference levels
	assert.Equal(t, 16, s.Width())

	cols := s.Columns()
	assert.Equal(t, "sex:Male", cols[0])
	assert.Equal(t, "age:16-19", cols[1])
	assert.NotContains(t, cols, "sex:Female")
	assert.NotContains(t, cols, "age:45-59")
	assert.NotContains(t, cols, "housing:Owns")
	assert.NotContains(t, cols, "grade:AB")
	assert.NotContains(t, cols, "education:Level 4/5")

	for i, c := range cols {
		j, ok := s.Index(c)
		require.True(t, ok)
		assert.Equal(t, i, j)
	}

	// Mutating the returned slice leaves the schema alone
	cols[0] = "tampered"
	assert.Equal(t, "sex:Male", s.Columns()[0])
}

func TestNewSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars []Variable
	}{
		{"empty", nil},
		{"no name", []Variable{{Levels: []string{"a", "b"}, Reference: "a"}}},
		{"one level", []Variable{{Name: "x", Levels: []string{"a"}, Reference: "a"}}},
		{"missing reference", []Variable{{Name: "x", Levels: []string{"a", "b"}, Reference: "c"}}},
		{"duplicate level", []Variable{{Name: "x", Levels: []string{"a", "a", "b"}, Reference: "a"}}},
		{"empty level", []Variable{{Name: "x", Levels: []string{"a", ""}, Reference: "a"}}},
		{"duplicate variable", []Variable{
			{Name: "x", Levels: []string{"a", "b"}, Reference: "a"},
			{Name: "x", Levels: []string{"a", "b"}, Reference: "b"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestEncode_IndicatorBlocks(t *testing.T) {
	s := mustSchema(t)
	m, err := Encode(s, testRecords())
	require.NoError(t, err)
	require.Equal(t, 3, m.Rows())

	vars := s.Variables()
	for r := 0; r < m.Rows(); r++ {
		row := m.X.RawRowView(r)
		require.Len(t, row, s.Width())

		for _, v := range vars {
			ones := 0
			for _, level := range v.Levels {
				j, ok := s.Index(ColumnName(v.Name, level))
				if !ok {
					continue
				}
				val := row[j]
				assert.True(t, val == 0 || val == 1, "entries must be 0 or 1")
				if val == 1 {
					ones++
				}
			}
			atReference := testRecords()[r].Level(v.Name) == v.Reference
			if atReference {
				assert.Equal(t, 0, ones, "row %d variable %s at reference", r, v.Name)
			} else {
				assert.Equal(t, 1, ones, "row %d variable %s", r, v.Name)
			}
		}
	}

	// The all-reference respondent encodes to a zero row
	assert.Equal(t, make([]float64, s.Width()), m.X.RawRowView(1))

	col, ok := m.Column("housing:Rents")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0}, col)
}

func TestEncode_Deterministic(t *testing.T) {
	s := mustSchema(t)
	a, err := Encode(s, testRecords())
	require.NoError(t, err)
	b, err := Encode(s, testRecords())
	require.NoError(t, err)

	if diff := cmp.Diff(a.X.RawMatrix().Data, b.X.RawMatrix().Data); diff != "" {
		t.Errorf("re-encoding differs (-first +second):\n%s", diff)
	}
	assert.True(t, mat.Equal(a.X, b.X))
}

func TestEncode_UnseenLevel(t *testing.T) {
	s := mustSchema(t)
	records := testRecords()
	records[2].Age = "90+"

	_, err := Encode(s, records)
	require.ErrorIs(t, err, mrperr.ErrEncoding)

	var enc *mrperr.EncodingError
	require.True(t, errors.As(err, &enc))
	assert.Equal(t, "age", enc.Variable)
	assert.Equal(t, "90+", enc.Level)
	assert.Equal(t, 2, enc.Row)
}

func TestEncode_MissingLevel(t *testing.T) {
	s := mustSchema(t)
	cells := []models.PostStratificationCell{
		{Area: "E1", Sex: "Male", Age: "20-24", Housing: "", Grade: "C2", Education: "Level 1", Weight: 10},
	}

	_, err := Encode(s, cells)
	var enc *mrperr.EncodingError
	require.True(t, errors.As(err, &enc))
	assert.Equal(t, "housing", enc.Variable)
	assert.Equal(t, "missing level", enc.Reason)
}

func TestEncode_Empty(t *testing.T) {
	s := mustSchema(t)
	m, err := Encode(s, []models.IndividualRecord{})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows())
}

func TestSchemaCheck(t *testing.T) {
	s := mustSchema(t)
	m, err := Encode(s, testRecords())
	require.NoError(t, err)
	assert.NoError(t, s.Check(m))

	// Same declaration, separate object: same fingerprint
	twin := mustSchema(t)
	assert.NoError(t, twin.Check(m))

	// Reordered levels change column semantics
	vars := DefaultVariables()
	vars[0].Levels = []string{"Female", "Male", "Other"}
	other, err := NewSchema(vars)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Check(m), mrperr.ErrEncoding)

	assert.ErrorIs(t, s.Check(nil), mrperr.ErrEncoding)
}

func TestAreaIndex(t *testing.T) {
	idx, err := NewAreaIndex([]string{"E3", "E1", "E3", "E2", "E1"})
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, []string{"E1", "E2", "E3"}, idx.Codes())

	i, ok := idx.Lookup("E2")
	require.True(t, ok)
	assert.Equal(t, 2, i)
	assert.Equal(t, "E3", idx.Code(3))

	_, ok = idx.Lookup("W9")
	assert.False(t, ok)

	ids, err := idx.IDs([]string{"E3", "E1"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, ids)

	_, err = idx.IDs([]string{"W9"})
	assert.Error(t, err)

	_, err = NewAreaIndex(nil)
	assert.Error(t, err)
	_, err = NewAreaIndex([]string{"E1", ""})
	assert.Error(t, err)
}

func TestAreaCovariates(t *testing.T) {
	areas := []models.AreaAggregate{
		{Code: "E1", Covariates: map[string]float64{"prior": 0.2, "degree": 10}},
		{Code: "E2", Covariates: map[string]float64{"prior": 0.4, "degree": 20}},
		{Code: "E3", Covariates: map[string]float64{"prior": 0.6, "degree": 30}},
	}

	raw, err := NewAreaCovariates(areas, []string{"prior", "degree"}, false)
	require.NoError(t, err)
	row, ok := raw.Row("E2")
	require.True(t, ok)
	assert.Equal(t, []float64{0.4, 20}, row)

	std, err := NewAreaCovariates(areas, []string{"prior", "degree"}, true)
	require.NoError(t, err)
	row, _ = std.Row("E2")
	assert.InDelta(t, 0, row[0], 1e-12)
	assert.InDelta(t, 0, row[1], 1e-12)
	row, _ = std.Row("E3")
	assert.InDelta(t, 1, row[0], 1e-12)
	assert.InDelta(t, 1, row[1], 1e-12)

	z, err := std.Broadcast([]string{"E1", "E3", "E1"})
	require.NoError(t, err)
	r, c := z.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, z.RawRowView(0), z.RawRowView(2))

	_, err = std.Broadcast([]string{"W9"})
	assert.Error(t, err)

	_, err = NewAreaCovariates(areas, []string{"missing"}, false)
	assert.Error(t, err)
}
