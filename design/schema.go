// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package design

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/danielhkuo/mrpcast/models"
)

// Variable declares one categorical covariate, its levels in column order,
// and the reference level absorbed into the intercept.
type Variable struct {
	Name      string   `yaml:"name" json:"name"`
	Levels    []string `yaml:"levels" json:"levels"`
	Reference string   `yaml:"reference" json:"reference"`
}

// Education levels
const (
	EducationLevel1  = "Level 1"
	EducationLevel2  = "Level 2"
	EducationLevel3  = "Level 3"
	EducationLevel45 = "Level 4/5"
	EducationNone    = "No qualifications"
)

// DefaultVariables returns the survey covariates with their fixed references.
func DefaultVariables() []Variable {
	return []Variable{
		{
			Name:      models.VarSex,
			Levels:    []string{"Male", "Female"},
			Reference: "Female",
		},
		{
			Name:      models.VarAge,
			Levels:    []string{"16-19", "20-24", "25-29", "30-44", "45-59", "60-64", "65-74", "75+"},
			Reference: "45-59",
		},
		{
			Name:      models.VarHousing,
			Levels:    []string{"Owns", "Rents"},
			Reference: "Owns",
		},
		{
			Name:      models.VarGrade,
			Levels:    []string{"AB", "C1", "C2", "DE"},
			Reference: "AB",
		},
		{
			Name:      models.VarEducation,
			Levels:    []string{EducationLevel1, EducationLevel2, EducationLevel3, EducationLevel45, EducationNone},
			Reference: EducationLevel45,
		},
	}
}

// Schema is the frozen column layout shared by the training and the
// prediction design matrices. Build it once and pass the same pointer
// to every encoder, the model, and the aggregator.
type Schema struct {
	vars        []Variable
	columns     []string
	index       map[string]int
	offsets     []int
	levelCol    []map[string]int
	fingerprint string
}

// NewSchema validates the variables and freezes the column order:
// variables in declared order, non-reference levels in declared order.
func NewSchema(vars []Variable) (*Schema, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("schema needs at least one variable")
	}

	s := &Schema{
		vars:     make([]Variable, len(vars)),
		index:    make(map[string]int),
		offsets:  make([]int, len(vars)),
		levelCol: make([]map[string]int, len(vars)),
	}

	seenVars := make(map[string]bool)
	h := sha256.New()
	for i, v := range vars {
		if v.Name == "" {
			return nil, fmt.Errorf("variable %d has no name", i)
		}
		if seenVars[v.Name] {
			return nil, fmt.Errorf("duplicate variable %q", v.Name)
		}
		seenVars[v.Name] = true

		if len(v.Levels) < 2 {
			return nil, fmt.Errorf("variable %q needs at least two levels", v.Name)
		}

		s.offsets[i] = len(s.columns)
		s.levelCol[i] = make(map[string]int, len(v.Levels))

		hasRef := false
		seenLevels := make(map[string]bool)
		for _, level := range v.Levels {
			if level == "" {
				return nil, fmt.Errorf("variable %q has an empty level", v.Name)
			}
			if seenLevels[level] {
				return nil, fmt.Errorf("variable %q repeats level %q", v.Name, level)
			}
			seenLevels[level] = true

			if level == v.Reference {
				hasRef = true
				s.levelCol[i][level] = -1
				continue
			}
			col := ColumnName(v.Name, level)
			s.levelCol[i][level] = len(s.columns)
			s.index[col] = len(s.columns)
			s.columns = append(s.columns, col)
		}
		if !hasRef {
			return nil, fmt.Errorf("variable %q: reference %q is not one of its levels", v.Name, v.Reference)
		}

		s.vars[i] = Variable{
			Name:      v.Name,
			Levels:    append([]string(nil), v.Levels...),
			Reference: v.Reference,
		}
		fmt.Fprintf(h, "%s|%s|%q;", v.Name, v.Reference, v.Levels)
	}

	s.fingerprint = hex.EncodeToString(h.Sum(nil))
	return s, nil
}

// ColumnName is the semantic name of the indicator for variable=level
func ColumnName(variable, level string) string {
	return variable + ":" + level
}

// Columns returns the column names in matrix order.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Width is the number of indicator columns.
func (s *Schema) Width() int {
	return len(s.columns)
}

// Index returns the column position for a semantic column name.
func (s *Schema) Index(column string) (int, bool) {
	i, ok := s.index[column]
	return i, ok
}

// Variables returns a copy of the declared variables.
func (s *Schema) Variables() []Variable {
	out := make([]Variable, len(s.vars))
	for i, v := range s.vars {
		out[i] = Variable{Name: v.Name, Levels: append([]string(nil), v.Levels...), Reference: v.Reference}
	}
	return out
}

// Fingerprint identifies the variables, levels, and references.
func (s *Schema) Fingerprint() string {
	return s.fingerprint
}
