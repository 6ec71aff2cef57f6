// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sampler provides model.Engine backends.

# Metropolis

Metropolis is an adaptive component-wise random-walk sampler written for
the hierarchical logistic model only:

	engine := sampler.NewMetropolis()
	post, err := model.Fit(ctx, engine, req)

Each iteration updates every regression coefficient one at a time, every
standardized area offset z_j (touching only that area's rows), and log tau.
It then interweaves the centred form of the area effects: log tau is
updated again with eta_j = tau·z_j held fixed, and the intercept is drawn
from its normal conditional with alpha + eta_j held fixed. Neither move
changes the linear predictors. The centred tau acceptance is reported as
"scale_centred". Step sizes
adapt in batches of 50 during warmup towards 0.44 acceptance and are frozen
afterwards. Chains run concurrently through an errgroup limited to
SampleRequest.Parallel; MaxParallelChains reports GOMAXPROCS (or the
configured cap). Each chain seeds its own PCG stream from (Seed, chain+1)
so runs are reproducible.

The context is checked between iterations; the iteration count is the
hard cap.

# CSV Replay

CSVEngine substitutes draws computed elsewhere. Each chain is one CSV file
whose header uses this module's parameter names:

	alpha,tau,beta[sex:Male],...,eta[1],eta[2],...

Lines starting with '#' are skipped, matching CmdStan output files.
*/
package sampler
