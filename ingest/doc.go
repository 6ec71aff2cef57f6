// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ingest reads the three input tables and the recode table.

# Files

Survey (one row per respondent):

	id,area,sex,age,housing,grade,education,turnout,vote

Frame (one row per post-stratification cell):

	area,sex,age,housing,grade,education,weight

Results (one row per area; party columns hold percentages):

	code,name,electorate,CON,LAB,LD,...,<covariates>

Lines starting with # are skipped. Header names can be changed through the
recode table's columns map.

# Recode Table

	columns:
	  area: pcon
	variables:
	  sex: {"1": Male, "2": Female}
	  education: {"9": ""}       # "" marks a missing value
	turnout:
	  voted: ["1"]
	parties: {"1": CON, "2": LAB, "3": LD}
	target_party: LAB

Respondents who did not vote, gave an unknown vote, or have a missing
demographic are dropped and counted. Frame rows with missing values are
errors.

Results shares must sum to 100 within a relative tolerance of 1e-5. A blank
share means the party did not stand, which validation treats as zero.
*/
package ingest
