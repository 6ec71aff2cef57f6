// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package validate scores area estimates against observed results.

Predicted and observed shares are joined by area code (inner join). Areas on
only one side are dropped and reported in the ValidationReport, never
silently absorbed. The joined vectors are scored in sorted code order:

	bias         mean(observed - predicted)
	rmse         sqrt(mean((observed - predicted)^2))
	mae          mean(|observed - predicted|)
	correlation  Pearson r
	calibration  observed = intercept + slope * predicted

Correlation and calibration are nil when undefined, which happens with
fewer than two areas or a constant vector.

Observed shares are percentages divided by 100. An area where the target
party stood no candidate counts as zero.
*/
package validate
