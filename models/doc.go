// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain, estimate, request, and response types.

# Domain Types

Inputs after ingestion and recoding:

  - IndividualRecord: one survey voter with canonical covariate levels and a binary vote
  - PostStratificationCell: one frame cell (area × demographic combination) with a weight
  - AreaAggregate: one constituency with electorate, covariates, and observed shares

IndividualRecord and PostStratificationCell both expose Level(variable), which
is all the design package needs to encode them with one shared schema.

# Estimate Types

Outputs of post-stratification and validation:

  - Summary: mean, sd, lower, upper of a per-draw distribution
  - AreaEstimate: per-area summary plus the per-draw shares
  - AggregatedEstimate: national and per-area estimates
  - ValidationReport: bias, RMSE, MAE, correlation, calibration fit
  - RunSnapshot: immutable record of one run, as persisted and served

# Request and Response Types

  - ValidateRunRequest: observed shares to re-score a stored run
  - AreaEstimateResponse, ListRunsResponse, DeleteRunResponse
  - ErrorResponse: error, message

# Constants

Variants:

	VariantBase     = "base"
	VariantExtended = "extended"

Covariates:

	VarSex, VarAge, VarHousing, VarGrade, VarEducation
*/
package models
