// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package design

import (
	"fmt"
	"sort"
)

// AreaIndex maps raw area codes to contiguous 1-based indices.
// Built once from the observed survey codes and reused on the prediction path.
type AreaIndex struct {
	codes []string
	pos   map[string]int
}

// NewAreaIndex sorts the distinct codes and numbers them 1..J.
func NewAreaIndex(codes []string) (*AreaIndex, error) {
	distinct := make(map[string]bool)
	for _, c := range codes {
		if c == "" {
			return nil, fmt.Errorf("empty area code")
		}
		distinct[c] = true
	}
	if len(distinct) == 0 {
		return nil, fmt.Errorf("no area codes")
	}

	sorted := make([]string, 0, len(distinct))
	for c := range distinct {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	idx := &AreaIndex{codes: sorted, pos: make(map[string]int, len(sorted))}
	for i, c := range sorted {
		idx.pos[c] = i + 1
	}
	return idx, nil
}

// Lookup returns the 1-based index of a code.
func (a *AreaIndex) Lookup(code string) (int, bool) {
	i, ok := a.pos[code]
	return i, ok
}

// Code returns the code at a 1-based index.
func (a *AreaIndex) Code(i int) string {
	return a.codes[i-1]
}

// Codes returns the codes in index order.
func (a *AreaIndex) Codes() []string {
	return append([]string(nil), a.codes...)
}

// Len is the number of areas J.
func (a *AreaIndex) Len() int {
	return len(a.codes)
}

// IDs converts codes to their indices, failing on any code not in the index.
func (a *AreaIndex) IDs(codes []string) ([]int, error) {
	ids := make([]int, len(codes))
	for i, c := range codes {
		id, ok := a.pos[c]
		if !ok {
			return nil, fmt.Errorf("row %d: area %q not in index", i, c)
		}
		ids[i] = id
	}
	return ids, nil
}
