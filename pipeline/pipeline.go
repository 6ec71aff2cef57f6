// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielhkuo/mrpcast/auth"
	"github.com/danielhkuo/mrpcast/cliparse"
	"github.com/danielhkuo/mrpcast/design"
	"github.com/danielhkuo/mrpcast/ingest"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/model"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
	"github.com/danielhkuo/mrpcast/poststrat"
	"github.com/danielhkuo/mrpcast/store"
	"github.com/danielhkuo/mrpcast/validate"
)

// Variant selection accepted by Settings
const VariantBoth = "both"

// Deps are the collaborators of a run. Store and Metrics may be nil.
type Deps struct {
	Engine     model.Engine
	Store      *store.Store
	Metrics    *metrics.Metrics
	RunKeySalt string
}

// Inputs are the raw input files.
type Inputs struct {
	Survey  []byte
	Frame   []byte
	Results []byte
	Recode  *ingest.RecodeTable
}

type Settings struct {
	TargetParty       string
	Variant           string
	Covariates        []string
	Standardize       bool
	ScaleToElectorate bool

	Chains        int
	Iterations    int
	Warmup        int
	Seed          uint64
	RhatThreshold float64

	Draws    int
	Interval float64
	NewAreas poststrat.NewAreaPolicy
}

// Result is one stored (or unstored) run.
type Result struct {
	Snapshot *models.RunSnapshot
	// RunKey authorizes deleting the run; empty when not stored.
	RunKey string
}

// SettingsFromConfig copies the run settings out of the configuration.
func SettingsFromConfig(cfg cliparse.Config) (Settings, error) {
	policy, err := poststrat.ParseNewAreaPolicy(cfg.NewAreas)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		TargetParty:       cfg.TargetParty,
		Variant:           cfg.Variant,
		Covariates:        cfg.Covariates,
		Standardize:       cfg.Standardize,
		ScaleToElectorate: cfg.ScaleToElectorate,
		Chains:            cfg.Chains,
		Iterations:        cfg.Iterations,
		Warmup:            cfg.Warmup,
		Seed:              cfg.Seed,
		RhatThreshold:     cfg.RhatThreshold,
		Draws:             cfg.Draws,
		Interval:          cfg.Interval,
		NewAreas:          policy,
	}, nil
}

// LoadInputs reads the input files named in cfg.
func LoadInputs(cfg cliparse.Config) (*Inputs, error) {
	in := &Inputs{}
	var err error
	if in.Survey, err = os.ReadFile(cfg.SurveyPath); err != nil {
		return nil, fmt.Errorf("read survey: %w", err)
	}
	if in.Frame, err = os.ReadFile(cfg.FramePath); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if in.Results, err = os.ReadFile(cfg.ResultsPath); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	if cfg.RecodePath != "" {
		if in.Recode, err = ingest.LoadRecodeTable(cfg.RecodePath); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// prepared holds everything built once and shared by all variants.
type prepared struct {
	party    string
	survey   *ingest.Survey
	areas    []models.AreaAggregate
	schema   *design.Schema
	index    *design.AreaIndex
	frame    *poststrat.Frame
	observed map[string]float64
	hash     string
}

// Run executes ingest, fit, post-stratification and validation for each
// requested variant, storing every snapshot when a store is configured.
func Run(ctx context.Context, deps Deps, in *Inputs, set Settings) ([]Result, error) {
	if deps.Engine == nil {
		return nil, errors.New("no sampling engine")
	}

	variants, err := variantsOf(set.Variant)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := prepare(in, set)
	deps.Metrics.ObserveStage("ingest", start)
	if err != nil {
		for _, v := range variants {
			deps.Metrics.RecordRun(string(v), status(err))
		}
		return nil, err
	}

	var results []Result
	for _, v := range variants {
		res, err := runVariant(ctx, deps, p, set, v)
		deps.Metrics.RecordRun(string(v), status(err))
		if err != nil {
			return results, fmt.Errorf("%s model: %w", v, err)
		}
		results = append(results, *res)
	}
	return results, nil
}

func variantsOf(s string) ([]model.Variant, error) {
	if s == VariantBoth {
		return []model.Variant{model.Base, model.Extended}, nil
	}
	v, err := model.ParseVariant(s)
	if err != nil {
		return nil, err
	}
	return []model.Variant{v}, nil
}

func prepare(in *Inputs, set Settings) (*prepared, error) {
	party := set.TargetParty
	if party == "" && in.Recode != nil {
		party = in.Recode.TargetParty
	}

	survey, err := ingest.ReadSurvey(bytes.NewReader(in.Survey), in.Recode, party)
	if err != nil {
		return nil, err
	}
	areas, err := ingest.ReadResults(bytes.NewReader(in.Results), in.Recode, ingest.ResultsOptions{Covariates: set.Covariates, TargetParty: party})
	if err != nil {
		return nil, err
	}
	cells, err := ingest.ReadFrame(bytes.NewReader(in.Frame), in.Recode)
	if err != nil {
		return nil, err
	}
	if set.ScaleToElectorate {
		if cells, err = ingest.ScaleToElectorate(cells, areas); err != nil {
			return nil, err
		}
	}

	schema, err := design.NewSchema(in.Recode.SchemaVariables())
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(survey.Records))
	for i, r := range survey.Records {
		codes[i] = r.Area
	}
	index, err := design.NewAreaIndex(codes)
	if err != nil {
		return nil, err
	}
	frame, err := poststrat.NewFrame(schema, cells)
	if err != nil {
		return nil, err
	}

	slog.Info("inputs prepared",
		"respondents", len(survey.Records),
		"survey_areas", index.Len(),
		"result_areas", len(areas),
		"frame_cells", frame.Cells(),
		"frame_areas", len(frame.Areas()),
		"columns", schema.Width(),
	)

	return &prepared{
		party:    party,
		survey:   survey,
		areas:    areas,
		schema:   schema,
		index:    index,
		frame:    frame,
		observed: validate.ObservedShares(areas, party),
		hash:     auth.InputsHash(in.Survey, in.Frame, in.Results),
	}, nil
}

func runVariant(ctx context.Context, deps Deps, p *prepared, set Settings, v model.Variant) (*Result, error) {
	var (
		spec *model.Spec
		covs *design.AreaCovariates
		err  error
	)
	switch v {
	case model.Extended:
		if covs, err = design.NewAreaCovariates(p.areas, set.Covariates, set.Standardize); err != nil {
			return nil, err
		}
		if spec, err = model.NewExtendedSpec(p.schema.Columns(), set.Covariates); err != nil {
			return nil, err
		}
	default:
		spec = model.NewBaseSpec(p.schema.Columns())
	}

	start := time.Now()
	post, err := model.Fit(ctx, deps.Engine, model.FitRequest{
		Spec:          spec,
		Schema:        p.schema,
		Areas:         p.index,
		Covariates:    covs,
		Records:       p.survey.Records,
		Chains:        set.Chains,
		Iterations:    set.Iterations,
		Warmup:        set.Warmup,
		Seed:          set.Seed,
		RhatThreshold: set.RhatThreshold,
	})
	deps.Metrics.ObserveStage("fit", start)
	if err != nil {
		return nil, err
	}
	deps.Metrics.SetWorstRhat(string(v), post.WorstRhat)
	deps.Metrics.SetAcceptance(post.Acceptance)

	start = time.Now()
	est, err := poststrat.Aggregate(ctx, post, p.frame, poststrat.Options{
		Draws:    set.Draws,
		Interval: set.Interval,
		NewAreas: set.NewAreas,
	})
	deps.Metrics.ObserveStage("poststratify", start)
	if err != nil {
		return nil, err
	}
	deps.Metrics.SetNationalShare(string(v), est.National.Mean)

	start = time.Now()
	report, err := validate.Validate(est.PointEstimates(), p.observed)
	deps.Metrics.ObserveStage("validate", start)
	if err != nil {
		return nil, err
	}

	snap := &models.RunSnapshot{
		Variant:     string(v),
		TargetParty: p.party,
		CreatedAt:   time.Now().UTC(),
		InputsHash:  p.hash,
		Respondents: len(p.survey.Records),
		Chains:      set.Chains,
		Iterations:  set.Iterations,
		Warmup:      set.Warmup,
		Seed:        set.Seed,
		WorstParam:  post.WorstParam,
		WorstRhat:   post.WorstRhat,
		Estimate:    *est,
		Observed:    p.observed,
		Validation:  report,
	}

	res := &Result{Snapshot: snap}
	if deps.Store != nil {
		start = time.Now()
		err := deps.Store.SaveRun(ctx, snap)
		deps.Metrics.ObserveStage("store", start)
		if err != nil {
			return nil, err
		}
		res.RunKey = auth.GenerateRunKey(snap.ID, deps.RunKeySalt)
	}

	slog.Info("run finished",
		"run_id", snap.ID,
		"variant", snap.Variant,
		"national", est.National.Mean,
		"rmse", report.RMSE,
		"dropped_areas", report.DroppedAreas,
	)
	return res, nil
}

// status classifies an outcome for the runs counter.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, mrperr.ErrConvergence):
		return "convergence"
	case errors.Is(err, mrperr.ErrEncoding):
		return "encoding"
	case errors.Is(err, mrperr.ErrInsufficientDraws):
		return "insufficient_draws"
	case errors.Is(err, mrperr.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, mrperr.ErrUndefinedAggregate):
		return "undefined_aggregate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
