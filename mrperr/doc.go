// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package mrperr defines the error taxonomy shared by the estimation packages.

# Sentinels

Every failure the engine can raise matches one of five sentinels:

	ErrEncoding           unseen level, empty level, schema mismatch
	ErrConvergence        posterior supplied without meeting R-hat < 1.1
	ErrInsufficientDraws  more draws requested than the posterior holds
	ErrDimensionMismatch  vectors of inconsistent length, empty joins
	ErrUndefinedAggregate an area (or the frame) with zero total weight

Callers test with errors.Is and extract details with errors.As:

	var enc *mrperr.EncodingError
	if errors.As(err, &enc) {
		slog.Error("bad level", "variable", enc.Variable, "level", enc.Level)
	}

None of these are retried; they abort the operation in progress.
*/
package mrperr
