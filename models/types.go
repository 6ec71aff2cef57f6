// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Model variant constants
const (
	VariantBase     = "base"
	VariantExtended = "extended"
)

// Categorical covariate names shared by survey records and frame cells
const (
	VarSex       = "sex"
	VarAge       = "age"
	VarHousing   = "housing"
	VarGrade     = "grade"
	VarEducation = "education"
)

// Domain types

// IndividualRecord is one cleaned survey respondent who cast a valid vote.
// Vote is 1 for the target party, 0 for any other party.
type IndividualRecord struct {
	ID        string `json:"id"`
	Area      string `json:"area"`
	Sex       string `json:"sex"`
	Age       string `json:"age"`
	Housing   string `json:"housing"`
	Grade     string `json:"grade"`
	Education string `json:"education"`
	Vote      int    `json:"vote"`
}

// Level returns the record's level for a categorical variable, "" if unknown.
func (r IndividualRecord) Level(variable string) string {
	switch variable {
	case VarSex:
		return r.Sex
	case VarAge:
		return r.Age
	case VarHousing:
		return r.Housing
	case VarGrade:
		return r.Grade
	case VarEducation:
		return r.Education
	}
	return ""
}

// PostStratificationCell is one demographic cell of the census frame.
type PostStratificationCell struct {
	Area      string  `json:"area"`
	Sex       string  `json:"sex"`
	Age       string  `json:"age"`
	Housing   string  `json:"housing"`
	Grade     string  `json:"grade"`
	Education string  `json:"education"`
	Weight    float64 `json:"weight"`
}

// Level returns the cell's level for a categorical variable, "" if unknown.
func (c PostStratificationCell) Level(variable string) string {
	switch variable {
	case VarSex:
		return c.Sex
	case VarAge:
		return c.Age
	case VarHousing:
		return c.Housing
	case VarGrade:
		return c.Grade
	case VarEducation:
		return c.Education
	}
	return ""
}

// AreaAggregate is one constituency with its observed result.
// Shares are percentages keyed by party; a party absent from the map
// did not field a candidate.
type AreaAggregate struct {
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	Electorate float64            `json:"electorate"`
	Covariates map[string]float64 `json:"covariates,omitempty"`
	Shares     map[string]float64 `json:"shares"`
}

// Estimate types

type Summary struct {
	Mean  float64 `json:"mean"`
	SD    float64 `json:"sd"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type AreaEstimate struct {
	Area    string    `json:"area"`
	Weight  float64   `json:"weight"`
	Summary Summary   `json:"summary"`
	Draws   []float64 `json:"draws,omitempty"`
}

// AggregatedEstimate holds the post-stratified vote share, nationally and
// per area, together with the per-draw values the summaries came from.
type AggregatedEstimate struct {
	Draws         int            `json:"draws"`
	Interval      float64        `json:"interval"`
	National      Summary        `json:"national"`
	NationalDraws []float64      `json:"national_draws,omitempty"`
	Areas         []AreaEstimate `json:"areas"`
}

// Area returns the estimate for an area code.
func (a *AggregatedEstimate) Area(code string) (AreaEstimate, bool) {
	for _, est := range a.Areas {
		if est.Area == code {
			return est, true
		}
	}
	return AreaEstimate{}, false
}

// PointEstimates maps area code to the posterior mean share.
func (a *AggregatedEstimate) PointEstimates() map[string]float64 {
	out := make(map[string]float64, len(a.Areas))
	for _, est := range a.Areas {
		out[est.Area] = est.Summary.Mean
	}
	return out
}

// ValidationReport compares area estimates with observed shares.
// Correlation and the calibration fit are nil when undefined
// (fewer than two areas or zero variance).
type ValidationReport struct {
	Areas                int      `json:"areas"`
	DroppedAreas         int      `json:"dropped_areas"`
	PredictedOnly        []string `json:"predicted_only,omitempty"`
	ObservedOnly         []string `json:"observed_only,omitempty"`
	Bias                 float64  `json:"bias"`
	RMSE                 float64  `json:"rmse"`
	MAE                  float64  `json:"mae"`
	Correlation          *float64 `json:"correlation"`
	CalibrationIntercept *float64 `json:"calibration_intercept"`
	CalibrationSlope     *float64 `json:"calibration_slope"`
}

// RunSnapshot is the immutable record of one estimation run.
type RunSnapshot struct {
	ID          string             `json:"id"`
	Variant     string             `json:"variant"`
	TargetParty string             `json:"target_party"`
	CreatedAt   time.Time          `json:"created_at"`
	InputsHash  string             `json:"inputs_hash"`
	Respondents int                `json:"respondents"`
	Chains      int                `json:"chains"`
	Iterations  int                `json:"iterations"`
	Warmup      int                `json:"warmup"`
	Seed        uint64             `json:"seed"`
	WorstParam  string             `json:"worst_param"`
	WorstRhat   float64            `json:"worst_rhat"`
	Estimate    AggregatedEstimate `json:"estimate"`
	Observed    map[string]float64 `json:"observed,omitempty"`
	Validation  *ValidationReport  `json:"validation,omitempty"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID          string    `json:"id"`
	Variant     string    `json:"variant"`
	TargetParty string    `json:"target_party"`
	CreatedAt   time.Time `json:"created_at"`
	National    Summary   `json:"national"`
	Areas       int       `json:"areas"`
	RMSE        *float64  `json:"rmse,omitempty"`
}

// Request types

// ValidateRunRequest carries observed shares in [0,1] keyed by area code.
type ValidateRunRequest struct {
	Observed map[string]float64 `json:"observed"`
}

// Response types

type AreaEstimateResponse struct {
	RunID    string       `json:"run_id"`
	Estimate AreaEstimate `json:"estimate"`
	Observed *float64     `json:"observed,omitempty"`
}

type ListRunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

type DeleteRunResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
