// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package pipeline runs one estimation end to end.

	in, err := pipeline.LoadInputs(cfg)
	set, err := pipeline.SettingsFromConfig(cfg)
	results, err := pipeline.Run(ctx, pipeline.Deps{Engine: engine, Store: st}, in, set)

# Stages

  - ingest: read the survey, results and frame; scale frame weights to
    electorate; build the schema, area index and frame once
  - fit: model.Fit through the configured engine, per variant
  - poststratify: poststrat.Aggregate over the shared frame
  - validate: score area estimates against observed shares
  - store: save the snapshot and derive its run key

Variant "both" fits base and extended in turn against the same schema, area
index and frame, and returns one result per variant. The first failure stops
the run; earlier results are still returned.

Each stage duration is observed in metrics, and every variant counts one
run labelled "ok" or with the class of its error.
*/
package pipeline
