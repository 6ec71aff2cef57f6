// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mrperr

import (
	"errors"
	"fmt"
)

var (
	ErrEncoding           = errors.New("encoding error")
	ErrConvergence        = errors.New("convergence error")
	ErrInsufficientDraws  = errors.New("insufficient draws")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrUndefinedAggregate = errors.New("undefined aggregate")
)

// EncodingError reports a categorical value that cannot be encoded with the
// active schema. Row is -1 when the failure is not tied to a single row.
type EncodingError struct {
	Variable string
	Level    string
	Row      int
	Reason   string
}

func (e *EncodingError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unseen level"
	}
	if e.Row >= 0 {
		return fmt.Sprintf("encoding error: row %d: %s %q for variable %q", e.Row, reason, e.Level, e.Variable)
	}
	return fmt.Sprintf("encoding error: %s %q for variable %q", reason, e.Level, e.Variable)
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// ConvergenceError reports the worst parameter of a non-converged posterior.
type ConvergenceError struct {
	Parameter string
	Rhat      float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence error: %s has R-hat %.4f", e.Parameter, e.Rhat)
}

func (e *ConvergenceError) Is(target error) bool { return target == ErrConvergence }

// InsufficientDrawsError is returned when more draws are requested than exist.
type InsufficientDrawsError struct {
	Requested int
	Available int
}

func (e *InsufficientDrawsError) Error() string {
	return fmt.Sprintf("insufficient draws: requested %d, only %d available", e.Requested, e.Available)
}

func (e *InsufficientDrawsError) Is(target error) bool { return target == ErrInsufficientDraws }

// DimensionMismatchError reports two collections that should agree in size.
type DimensionMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s: want %d, got %d", e.What, e.Want, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// UndefinedAggregateError is returned for an area whose cells carry no weight.
// Area is empty when the whole frame has zero weight.
type UndefinedAggregateError struct {
	Area string
}

func (e *UndefinedAggregateError) Error() string {
	if e.Area == "" {
		return "undefined aggregate: frame has zero total weight"
	}
	return fmt.Sprintf("undefined aggregate: area %q has zero total weight", e.Area)
}

func (e *UndefinedAggregateError) Is(target error) bool { return target == ErrUndefinedAggregate }
