// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package report prints a run snapshot for people: the national estimate
// with its interval, fit diagnostics, validation metrics and the areas with
// the highest and lowest estimated share. Numbers are formatted for the
// chosen locale (British English by default).
package report
