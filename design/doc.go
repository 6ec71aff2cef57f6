// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package design builds the numeric inputs of the model: dummy-encoded design
matrices, the area index, and the area-level covariate table.

# Schema

A Schema is created once from the declared variables and is then the only
source of column semantics:

	schema, err := design.NewSchema(design.DefaultVariables())
	train, err := design.Encode(schema, records) // []models.IndividualRecord
	frame, err := design.Encode(schema, cells)   // []models.PostStratificationCell

Columns are named "<variable>:<level>" (for example "age:16-19"), one per
non-reference level. Reference levels:

	sex        Female
	age        45-59
	housing    Owns
	grade      AB
	education  Level 4/5

Look columns up by name with Schema.Index, never by position.

# Encoding Errors

Encode returns an *mrperr.EncodingError for any level outside the declared
set, including an empty one. Schema.Check rejects a matrix built by a
different schema.

# Areas

AreaIndex numbers observed area codes 1..J in sorted order. The same index
is stored on the fitted posterior and used on the prediction path.

# Area Covariates

AreaCovariates carries the extended model's area-level predictors with a
centre and scale fixed at construction; Broadcast repeats an area's row for
every individual in that area.
*/
package design
