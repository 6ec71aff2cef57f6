// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the mrpcast command.

mrpcast estimates a party's vote share in every constituency from a
national survey by multilevel regression and post-stratification (MRP):
a hierarchical logistic model is fitted to the survey, then its
posterior draws are weighted over a census post-stratification frame and
compared with the observed results.

# Running a Model

	mrpcast run --survey survey.csv --frame frame.csv --results results.csv \
		--recode recode.yaml --party LAB --variant both --covariates retired,degree

The report is printed to stdout. With DATABASE_URL (-d) set, each run is
stored and its run key printed.

# Serving Stored Runs

	DATABASE_URL=file:mrpcast.db RUN_KEY_SALT=... mrpcast serve -p 3318

# Configuration

Settings load from .env, then the environment, then flags:

  - DATABASE_URL (-d), DATABASE_TYPE (-t): sqlite (default) or postgres
  - RUN_KEY_SALT: secret for run key HMAC (required when storing or serving)
  - REDIS_URL, CACHE_TTL: optional snapshot cache for serve
  - VARIANT, CHAINS, ITERATIONS, WARMUP, SEED, RHAT_THRESHOLD: fitting
  - DRAWS, INTERVAL, NEW_AREAS: post-stratification
  - LOG_LEVEL, LOG_FORMAT: logging

# Architecture

  - ingest: CSV and YAML readers for survey, frame and results
  - design: categorical schema, area index, covariates
  - model, sampler: model specs, fitting, diagnostics, samplers
  - poststrat: aggregation of draws over the frame
  - validate: comparison with observed results
  - pipeline: the run sequence and its metrics
  - db, store, cache: run persistence
  - handlers, router, middleware: HTTP read API
  - report, metrics, auth, cliparse: supporting concerns

See package documentation for each component.
*/
package main
