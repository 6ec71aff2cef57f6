// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sampler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danielhkuo/mrpcast/model"
	"github.com/danielhkuo/mrpcast/mrperr"
)

// CSVEngine replays draws written by an external sampler: one CSV file per
// chain, a header of parameter names, one row per retained iteration, and
// '#' comment lines ignored. The external run already fixed the chain
// length, so Iterations and Warmup in the request are not applied.
type CSVEngine struct {
	Paths []string
}

func NewCSVEngine(paths ...string) *CSVEngine {
	return &CSVEngine{Paths: paths}
}

// MaxParallelChains is the number of chain files; replay has no compute bound.
func (e *CSVEngine) MaxParallelChains() int {
	return len(e.Paths)
}

func (e *CSVEngine) Sample(ctx context.Context, req model.SampleRequest) (*model.SampleResponse, error) {
	if req.Chains != len(e.Paths) {
		return nil, &mrperr.DimensionMismatchError{What: "chain files", Want: req.Chains, Got: len(e.Paths)}
	}

	resp := &model.SampleResponse{Draws: make(map[string][][]float64, len(req.Retain))}
	for _, name := range req.Retain {
		resp.Draws[name] = make([][]float64, len(e.Paths))
	}

	for c, path := range e.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open chain %d: %w", c, err)
		}
		cols, err := ReadChain(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read chain %d (%s): %w", c, path, err)
		}
		for _, name := range req.Retain {
			d, ok := cols[name]
			if !ok {
				return nil, fmt.Errorf("chain %d (%s) has no column %q", c, path, name)
			}
			resp.Draws[name][c] = d
		}
	}
	return resp, nil
}

// ReadChain parses one chain file into parameter → draws.
func ReadChain(r io.Reader) (map[string][]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty chain file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string][]float64, len(header))
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if _, dup := cols[header[i]]; dup {
			return nil, fmt.Errorf("duplicate column %q", header[i])
		}
		cols[header[i]] = nil
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line, header[i], err)
			}
			cols[header[i]] = append(cols[header[i]], v)
		}
	}
	return cols, nil
}
