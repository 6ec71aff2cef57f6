// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package model declares the hierarchical logistic regression and the contract
with the posterior sampling engine.

# Variants

Base:

	logit P(vote=1) = alpha + X·beta + eta[area]
	alpha ~ N(0,1)   beta_k ~ N(0,1)   eta_j ~ N(0,tau)   tau ~ N+(0,1)

Extended adds Z·gamma with gamma_l ~ N(0,1), where Z repeats each area's
covariates for every respondent in it.

# Parameter Names

Draws are keyed by semantic name, never by position:

	alpha, tau
	beta[<column>]     e.g. beta[age:16-19]
	eta[<j>]           j is the AreaIndex position, 1..J
	gamma[<covariate>] extended model only

# Engine Contract

An Engine receives a SampleRequest (spec, data, chains, parallelism,
iterations, warmup, seed, parameters to retain) and returns draws as
param → chain → iteration, optionally with R-hat values. Fit queries
MaxParallelChains before dispatch and caps parallelism to it.

# Convergence

Fit computes split R-hat for every retained parameter the engine did not
report. Posterior.Converged is true only when every value is below 1.1;
RequireConverged turns a failing posterior into an *mrperr.ConvergenceError.

# Immutability

Draws copies its input on construction and every accessor returns a copy,
so a posterior can be shared by concurrent readers.
*/
package model
