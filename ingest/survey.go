// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/danielhkuo/mrpcast/models"
)

// Logical column names. RecodeTable.Columns may rename them.
const (
	ColID         = "id"
	ColArea       = "area"
	ColTurnout    = "turnout"
	ColVote       = "vote"
	ColWeight     = "weight"
	ColCode       = "code"
	ColName       = "name"
	ColElectorate = "electorate"
)

var demographics = []string{
	models.VarSex,
	models.VarAge,
	models.VarHousing,
	models.VarGrade,
	models.VarEducation,
}

// Survey is the cleaned respondent table plus what was dropped on the way.
type Survey struct {
	Records             []models.IndividualRecord
	Read                int
	NonVoters           int
	UnknownVote         int
	MissingDemographics int
}

// ReadSurvey reads respondents, keeps voters with a known vote and complete
// demographics, and sets Vote to 1 for the target party.
func ReadSurvey(r io.Reader, t *RecodeTable, targetParty string) (*Survey, error) {
	if targetParty == "" && t != nil {
		targetParty = t.TargetParty
	}
	if targetParty == "" {
		return nil, fmt.Errorf("no target party")
	}

	tab, err := newTable(r)
	if err != nil {
		return nil, fmt.Errorf("survey: %w", err)
	}
	cols := []string{t.Column(ColArea), t.Column(ColVote)}
	for _, v := range demographics {
		cols = append(cols, t.Column(v))
	}
	if err := tab.require(cols...); err != nil {
		return nil, fmt.Errorf("survey: %w", err)
	}
	turnoutCol := t.Column(ColTurnout)
	hasTurnout := tab.has(turnoutCol)

	s := &Survey{}
	for {
		rec, err := tab.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("survey: %w", err)
		}
		s.Read++

		if hasTurnout && !t.Voted(tab.get(rec, turnoutCol)) {
			s.NonVoters++
			continue
		}
		party := t.Party(tab.get(rec, t.Column(ColVote)))
		if party == "" {
			s.UnknownVote++
			continue
		}

		ir := models.IndividualRecord{
			ID:   tab.get(rec, t.Column(ColID)),
			Area: tab.get(rec, t.Column(ColArea)),
		}
		if ir.ID == "" {
			ir.ID = strconv.Itoa(s.Read)
		}
		if party == targetParty {
			ir.Vote = 1
		}

		complete := ir.Area != ""
		levels := make([]string, len(demographics))
		for i, v := range demographics {
			lvl, ok := t.Recode(v, tab.get(rec, t.Column(v)))
			levels[i] = lvl
			complete = complete && ok
		}
		if !complete {
			s.MissingDemographics++
			continue
		}
		ir.Sex, ir.Age, ir.Housing, ir.Grade, ir.Education = levels[0], levels[1], levels[2], levels[3], levels[4]
		s.Records = append(s.Records, ir)
	}

	slog.Info("survey loaded",
		"read", s.Read,
		"kept", len(s.Records),
		"non_voters", s.NonVoters,
		"unknown_vote", s.UnknownVote,
		"missing_demographics", s.MissingDemographics,
	)
	if len(s.Records) == 0 {
		return nil, fmt.Errorf("survey: no usable respondents out of %d", s.Read)
	}
	return s, nil
}
