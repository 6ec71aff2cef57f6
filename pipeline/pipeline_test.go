// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/mrpcast/auth"
	"github.com/danielhkuo/mrpcast/cliparse"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/model"
	"github.com/danielhkuo/mrpcast/mrperr"
	"github.com/danielhkuo/mrpcast/numeric"
	"github.com/danielhkuo/mrpcast/poststrat"
	"github.com/danielhkuo/mrpcast/store"
	"github.com/danielhkuo/mrpcast/testutil"
)

// fakeEngine returns independent normal draws around fixed centres.
// With spread > 0 the chains are shifted apart and do not converge.
type fakeEngine struct {
	alpha  float64
	spread float64
	calls  int
}

func (e *fakeEngine) MaxParallelChains() int { return 2 }

func (e *fakeEngine) Sample(_ context.Context, req model.SampleRequest) (*model.SampleResponse, error) {
	e.calls++
	rng := rand.New(rand.NewPCG(req.Seed, 99))
	draws := make(map[string][][]float64, len(req.Retain))
	for _, name := range req.Retain {
		centre := 0.0
		switch name {
		case model.ParamIntercept:
			centre = e.alpha
		case model.ParamAreaScale:
			centre = 0.5
		}
		chains := make([][]float64, req.Chains)
		for c := range chains {
			chains[c] = make([]float64, req.Kept())
			for i := range chains[c] {
				chains[c][i] = centre + float64(c)*e.spread + 0.02*rng.NormFloat64()
			}
		}
		draws[name] = chains
	}
	return &model.SampleResponse{Draws: draws, Acceptance: map[string]float64{"fixed": 0.44}}, nil
}

const testSurvey = `id,area,sex,age,housing,grade,education,vote
1,E1,Male,16-19,Rents,DE,Level 1,LAB
2,E1,Female,45-59,Owns,AB,Level 4/5,CON
3,E2,Female,75+,Owns,C1,Level 2,LAB
4,E2,Male,30-44,Rents,C2,Level 3,LD
5,E3,Female,60-64,Owns,C1,No qualifications,CON
6,E3,Male,20-24,Rents,DE,Level 2,LAB
`

const testFrame = `area,sex,age,housing,grade,education,weight
E1,Male,16-19,Rents,DE,Level 1,10
E1,Female,45-59,Owns,AB,Level 4/5,30
E2,Female,75+,Owns,C1,Level 2,20
E2,Male,30-44,Rents,C2,Level 3,20
E3,Female,60-64,Owns,C1,No qualifications,5
E3,Male,20-24,Rents,DE,Level 2,15
`

const testResults = `code,name,electorate,CON,LAB,LD,prior
E1,North,70000,45,40,15,0.38
E2,South,60000,30,50,20,0.47
E3,East,50000,55,35,10,0.33
`

func testInputs() *Inputs {
	return &Inputs{
		Survey:  []byte(testSurvey),
		Frame:   []byte(testFrame),
		Results: []byte(testResults),
	}
}

func testSettings() Settings {
	return Settings{
		TargetParty:       "LAB",
		Variant:           "base",
		Covariates:        []string{"prior"},
		Standardize:       true,
		ScaleToElectorate: true,
		Chains:            4,
		Iterations:        300,
		Warmup:            100,
		Seed:              11,
		Draws:             50,
		Interval:          0.9,
		NewAreas:          poststrat.NewAreaError,
	}
}

func TestRunBaseStoresSnapshot(t *testing.T) {
	st := store.New(testutil.SetupTestDB(t))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine := &fakeEngine{alpha: -0.3}

	results, err := Run(context.Background(), Deps{Engine: engine, Store: st, Metrics: m, RunKeySalt: "salt"}, testInputs(), testSettings())
	require.NoError(t, err)
	require.Len(t, results, 1)

	snap := results[0].Snapshot
	assert.Equal(t, "base", snap.Variant)
	assert.Equal(t, "LAB", snap.TargetParty)
	assert.Equal(t, 6, snap.Respondents)
	assert.Equal(t, auth.InputsHash([]byte(testSurvey), []byte(testFrame), []byte(testResults)), snap.InputsHash)
	assert.InDelta(t, numeric.InvLogit(-0.3), snap.Estimate.National.Mean, 0.05)
	assert.Len(t, snap.Estimate.Areas, 3)
	assert.Equal(t, 50, snap.Estimate.Draws)

	// frame weights were scaled to the electorate
	e1, ok := snap.Estimate.Area("E1")
	require.True(t, ok)
	assert.InDelta(t, 70000, e1.Weight, 1e-6)

	require.NotNil(t, snap.Validation)
	assert.Equal(t, 3, snap.Validation.Areas)
	assert.InDelta(t, 0.40, snap.Observed["E1"], 1e-12)

	assert.NoError(t, auth.ValidateRunKey(snap.ID, results[0].RunKey, "salt"))
	stored, err := st.GetRun(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Estimate.National, stored.Estimate.National)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Runs.WithLabelValues("base", "ok")))
	assert.Equal(t, 0.44, promtest.ToFloat64(m.Acceptance.WithLabelValues("fixed")))
}

func TestRunBothVariants(t *testing.T) {
	engine := &fakeEngine{alpha: 0.2}
	set := testSettings()
	set.Variant = VariantBoth

	results, err := Run(context.Background(), Deps{Engine: engine}, testInputs(), set)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "base", results[0].Snapshot.Variant)
	assert.Equal(t, "extended", results[1].Snapshot.Variant)
	assert.Equal(t, 2, engine.calls)

	// without a store nothing gets an ID or key
	assert.Empty(t, results[0].Snapshot.ID)
	assert.Empty(t, results[0].RunKey)
}

func TestRunConvergenceFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	_, err := Run(context.Background(), Deps{Engine: &fakeEngine{spread: 3}, Metrics: m}, testInputs(), testSettings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, mrperr.ErrConvergence))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Runs.WithLabelValues("base", "convergence")))
}

func TestRunInsufficientDraws(t *testing.T) {
	set := testSettings()
	set.Draws = 5000

	_, err := Run(context.Background(), Deps{Engine: &fakeEngine{}}, testInputs(), set)
	assert.True(t, errors.Is(err, mrperr.ErrInsufficientDraws))
}

func TestRunUnseenFrameLevel(t *testing.T) {
	in := testInputs()
	in.Frame = []byte(strings.Replace(testFrame, "E3,Male,20-24", "E3,Other,20-24", 1))

	_, err := Run(context.Background(), Deps{Engine: &fakeEngine{}}, in, testSettings())
	var ee *mrperr.EncodingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "Other", ee.Level)
}

func TestRunFrameAreaWithoutRespondents(t *testing.T) {
	in := testInputs()
	in.Frame = []byte(testFrame + "E4,Male,16-19,Rents,DE,Level 1,10\n")
	in.Results = []byte(testResults + "E4,West,40000,50,50,,0.5\n")

	_, err := Run(context.Background(), Deps{Engine: &fakeEngine{}}, in, testSettings())
	assert.True(t, errors.Is(err, mrperr.ErrEncoding))

	set := testSettings()
	set.NewAreas = poststrat.NewAreaPopulationMean
	results, err := Run(context.Background(), Deps{Engine: &fakeEngine{}}, in, set)
	require.NoError(t, err)
	_, ok := results[0].Snapshot.Estimate.Area("E4")
	assert.True(t, ok)
}

func TestRunTargetPartyAbsentFromResults(t *testing.T) {
	in := testInputs()
	in.Results = []byte(`code,name,electorate,CON,LD,prior
E1,North,70000,60,40,0.38
E2,South,60000,70,30,0.47
E3,East,50000,80,20,0.33
`)
	m := metrics.New(prometheus.NewRegistry())

	_, err := Run(context.Background(), Deps{Engine: &fakeEngine{}, Metrics: m}, in, testSettings())
	var ee *mrperr.EncodingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "LAB", ee.Level)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Runs.WithLabelValues("base", "encoding")))
}

func TestRunRequiresEngine(t *testing.T) {
	_, err := Run(context.Background(), Deps{}, testInputs(), testSettings())
	assert.Error(t, err)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := cliparse.Config{Variant: "extended", Chains: 3, Draws: 20, NewAreas: "population-mean", Seed: 5}
	set, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, poststrat.NewAreaPopulationMean, set.NewAreas)
	assert.Equal(t, 3, set.Chains)
	assert.Equal(t, uint64(5), set.Seed)

	cfg.NewAreas = "guess"
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}

func TestLoadInputs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	cfg := cliparse.Config{
		SurveyPath:  write("survey.csv", testSurvey),
		FramePath:   write("frame.csv", testFrame),
		ResultsPath: write("results.csv", testResults),
		RecodePath:  write("recode.yaml", "target_party: LAB\n"),
	}

	in, err := LoadInputs(cfg)
	require.NoError(t, err)
	assert.Equal(t, testSurvey, string(in.Survey))
	require.NotNil(t, in.Recode)
	assert.Equal(t, "LAB", in.Recode.TargetParty)

	cfg.FramePath = filepath.Join(dir, "missing.csv")
	_, err = LoadInputs(cfg)
	assert.ErrorContains(t, err, "read frame")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("wrap: %w", &mrperr.ConvergenceError{Parameter: "tau", Rhat: 1.3}), "convergence"},
		{&mrperr.UndefinedAggregateError{Area: "E1"}, "undefined_aggregate"},
		{&mrperr.DimensionMismatchError{What: "x", Want: 1, Got: 2}, "dimension_mismatch"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status(tt.err))
	}
}
