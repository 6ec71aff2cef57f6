// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/mrpcast/design"
)

// RecodeTable maps raw survey and census labels onto the canonical levels
// of the schema.
type RecodeTable struct {
	// Columns renames logical columns to the header names in the files.
	Columns map[string]string `yaml:"columns"`
	// Variables holds raw → canonical label maps per variable. A raw label
	// mapped to "" marks a missing value.
	Variables map[string]map[string]string `yaml:"variables"`
	Turnout   TurnoutRule                  `yaml:"turnout"`
	// Parties maps raw vote labels to party codes.
	Parties     map[string]string `yaml:"parties"`
	TargetParty string            `yaml:"target_party"`
	// Schema replaces the default variables when set.
	Schema []design.Variable `yaml:"schema"`
}

// TurnoutRule says which raw turnout labels count as having voted.
// With no labels every respondent is treated as a voter.
type TurnoutRule struct {
	Voted []string `yaml:"voted"`
}

// LoadRecodeTable reads a YAML recode table.
func LoadRecodeTable(path string) (*RecodeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recode table: %w", err)
	}
	return ParseRecodeTable(data)
}

func ParseRecodeTable(data []byte) (*RecodeTable, error) {
	t := &RecodeTable{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse recode table: %w", err)
	}
	return t, nil
}

// Column returns the header name used for a logical column.
func (t *RecodeTable) Column(name string) string {
	if t != nil {
		if h, ok := t.Columns[name]; ok && h != "" {
			return h
		}
	}
	return name
}

// Recode maps a raw label. Labels without a mapping pass through trimmed;
// ok is false when the label is explicitly mapped to missing or is empty.
func (t *RecodeTable) Recode(variable, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if t != nil {
		if m, found := t.Variables[variable]; found {
			if v, mapped := m[raw]; mapped {
				return v, v != ""
			}
		}
	}
	return raw, raw != ""
}

// Voted reports whether a raw turnout label counts as voting.
func (t *RecodeTable) Voted(raw string) bool {
	if t == nil || len(t.Turnout.Voted) == 0 {
		return true
	}
	raw = strings.TrimSpace(raw)
	for _, v := range t.Turnout.Voted {
		if v == raw {
			return true
		}
	}
	return false
}

// Party maps a raw vote label to a party code, "" when unknown.
func (t *RecodeTable) Party(raw string) string {
	raw = strings.TrimSpace(raw)
	if t == nil || len(t.Parties) == 0 {
		return raw
	}
	return t.Parties[raw]
}

// ResultsParty maps a results column header to a party code. Headers
// without a mapping are taken as party codes already.
func (t *RecodeTable) ResultsParty(header string) string {
	header = strings.TrimSpace(header)
	if t != nil {
		if code, ok := t.Parties[header]; ok && code != "" {
			return code
		}
	}
	return header
}

// SchemaVariables returns the schema override or the default variables.
func (t *RecodeTable) SchemaVariables() []design.Variable {
	if t != nil && len(t.Schema) > 0 {
		return t.Schema
	}
	return design.DefaultVariables()
}
