// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package numeric holds the small numerical helpers shared by the model,
sampler, post-stratification, and validation packages.

# Link Functions

InvLogit is evaluated in the branch that cannot overflow:

	p := numeric.InvLogit(-800) // 0, not NaN

Log1pExp is the matching stable form used by the log-likelihood.

# Summaries

Summarize turns a slice of per-draw values into a models.Summary:

	s := numeric.Summarize(draws, 0.9) // mean, sd, 5th and 95th percentile

Percentile interpolates linearly between closest ranks of sorted data.
*/
package numeric
