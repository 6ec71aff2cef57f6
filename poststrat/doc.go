// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package poststrat turns a fitted posterior into area and national vote-share
estimates by post-stratification.

# Usage

	frame, err := poststrat.NewFrame(post.Schema, cells)
	est, err := poststrat.Aggregate(ctx, post, frame, poststrat.Options{Draws: 50})

NewFrame must be given the schema stored on the posterior. A frame encoded
by any other layout is rejected with an *mrperr.EncodingError.

# Per Draw

For each of the S selected draws:

	p_i      = invlogit(alpha + x_i·beta + eta[area_i] (+ z_area·gamma))
	national = Σ w_i p_i / Σ w_i
	area a   = Σ_{i in a} w_i p_i / Σ_{i in a} w_i

Coefficients are resolved by name (beta[<column>], eta[<j>], gamma[<name>])
through the posterior's schema and area index. Draws are selected by even
thinning across the chain-concatenated sequence, so repeated calls give the
same result.

# Failures

Checked before any draw is processed, in order:

  - non-converged posterior: *mrperr.ConvergenceError
  - S above available draws: *mrperr.InsufficientDrawsError
  - foreign frame encoding: *mrperr.EncodingError
  - an area or the frame with zero total weight: *mrperr.UndefinedAggregateError
  - a frame area absent from the fit: *mrperr.EncodingError, unless
    Options.NewAreas is NewAreaPopulationMean (eta taken as 0)

# Concurrency

Draws are processed in parallel with errgroup, bounded by Options.Parallel.
Each draw writes only its own slot of the result slices.
*/
package poststrat
