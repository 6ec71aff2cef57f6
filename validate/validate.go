// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package validate

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
)

// ObservedShares converts each area's percentage for party to [0,1].
// An area without an entry for the party gets an explicit zero.
func ObservedShares(areas []models.AreaAggregate, party string) map[string]float64 {
	out := make(map[string]float64, len(areas))
	for _, a := range areas {
		out[a.Code] = a.Shares[party] / 100
	}
	return out
}

// Reconciled is the inner join of predicted and observed shares by area
// code, in sorted code order.
type Reconciled struct {
	Codes         []string
	Predicted     []float64
	Observed      []float64
	PredictedOnly []string
	ObservedOnly  []string
}

// Dropped is the number of areas present on only one side.
func (r *Reconciled) Dropped() int {
	return len(r.PredictedOnly) + len(r.ObservedOnly)
}

func Reconcile(pred, obs map[string]float64) *Reconciled {
	r := &Reconciled{}
	for code := range pred {
		if _, ok := obs[code]; !ok {
			r.PredictedOnly = append(r.PredictedOnly, code)
			continue
		}
		r.Codes = append(r.Codes, code)
	}
	for code := range obs {
		if _, ok := pred[code]; !ok {
			r.ObservedOnly = append(r.ObservedOnly, code)
		}
	}
	sort.Strings(r.Codes)
	sort.Strings(r.PredictedOnly)
	sort.Strings(r.ObservedOnly)

	r.Predicted = make([]float64, len(r.Codes))
	r.Observed = make([]float64, len(r.Codes))
	for i, code := range r.Codes {
		r.Predicted[i] = pred[code]
		r.Observed[i] = obs[code]
	}
	return r
}

// Score compares aligned predicted and observed vectors.
func Score(pred, obs []float64) (*models.ValidationReport, error) {
	if len(pred) != len(obs) {
		return nil, &mrperr.DimensionMismatchError{What: "observed shares", Want: len(pred), Got: len(obs)}
	}
	n := len(pred)
	if n == 0 {
		return nil, &mrperr.DimensionMismatchError{What: "reconciled areas", Want: 1, Got: 0}
	}

	resid := make([]float64, n)
	floats.SubTo(resid, obs, pred)

	var sq, abs float64
	for _, e := range resid {
		sq += e * e
		abs += math.Abs(e)
	}

	rep := &models.ValidationReport{
		Areas: n,
		Bias:  stat.Mean(resid, nil),
		RMSE:  math.Sqrt(sq / float64(n)),
		MAE:   abs / float64(n),
	}
	if n < 2 {
		return rep, nil
	}

	if r := stat.Correlation(pred, obs, nil); finite(r) {
		rep.Correlation = &r
	}
	if stat.Variance(pred, nil) > 0 {
		a, b := stat.LinearRegression(pred, obs, nil, false)
		if finite(a) && finite(b) {
			rep.CalibrationIntercept = &a
			rep.CalibrationSlope = &b
		}
	}
	return rep, nil
}

// Validate reconciles by area code and scores the join.
func Validate(pred, obs map[string]float64) (*models.ValidationReport, error) {
	r := Reconcile(pred, obs)
	if r.Dropped() > 0 {
		slog.Warn("areas dropped during reconciliation",
			"predicted_only", len(r.PredictedOnly),
			"observed_only", len(r.ObservedOnly),
		)
	}

	rep, err := Score(r.Predicted, r.Observed)
	if err != nil {
		return nil, err
	}
	rep.DroppedAreas = r.Dropped()
	rep.PredictedOnly = r.PredictedOnly
	rep.ObservedOnly = r.ObservedOnly
	return rep, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
