// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/mrpcast/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAreaNotFound = errors.New("area not found")
)

// Store persists run snapshots.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveRun stores a snapshot and its area rows in one transaction.
// An empty ID is replaced by a new UUID and a zero CreatedAt by now.
func (s *Store) SaveRun(ctx context.Context, snap *models.RunSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.CreatedAt = snap.CreatedAt.Truncate(time.Millisecond)

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	nat := snap.Estimate.National
	var rmse *float64
	if snap.Validation != nil {
		rmse = &snap.Validation.RMSE
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mrp_run (id, variant, target_party, created_at, inputs_hash,
			national_mean, national_sd, national_lower, national_upper, area_count, rmse, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, snap.ID, snap.Variant, snap.TargetParty, snap.CreatedAt.UnixMilli(), snap.InputsHash,
		nat.Mean, nat.SD, nat.Lower, nat.Upper, len(snap.Estimate.Areas), rmse, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, a := range snap.Estimate.Areas {
		var observed *float64
		if v, ok := snap.Observed[a.Area]; ok {
			observed = &v
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO area_estimate (run_id, area, weight, mean, sd, lower_bound, upper_bound, observed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, snap.ID, a.Area, a.Weight, a.Summary.Mean, a.Summary.SD, a.Summary.Lower, a.Summary.Upper, observed)
		if err != nil {
			return fmt.Errorf("failed to insert area %s: %w", a.Area, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun returns the full snapshot of a run.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM mrp_run WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var snap models.RunSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// ListRuns returns run summaries, newest first. Snapshots are not decoded.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, variant, target_party, created_at,
			national_mean, national_sd, national_lower, national_upper, area_count, rmse
		FROM mrp_run
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		var (
			rs      models.RunSummary
			created int64
			rmse    sql.NullFloat64
		)
		nat := &rs.National
		if err := rows.Scan(&rs.ID, &rs.Variant, &rs.TargetParty, &created,
			&nat.Mean, &nat.SD, &nat.Lower, &nat.Upper, &rs.Areas, &rmse); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rs.CreatedAt = time.UnixMilli(created).UTC()
		if rmse.Valid {
			v := rmse.Float64
			rs.RMSE = &v
		}
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetAreaEstimates returns the area summaries of a run ordered by code.
// Per-draw values are only kept in the snapshot.
func (s *Store) GetAreaEstimates(ctx context.Context, id string) ([]models.AreaEstimateResponse, error) {
	if err := s.requireRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT area, weight, mean, sd, lower_bound, upper_bound, observed
		FROM area_estimate
		WHERE run_id = $1
		ORDER BY area
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	out := []models.AreaEstimateResponse{}
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		a.RunID = id
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate areas: %w", err)
	}
	return out, nil
}

// GetAreaEstimate returns one area of a run.
func (s *Store) GetAreaEstimate(ctx context.Context, id, code string) (*models.AreaEstimateResponse, error) {
	if err := s.requireRun(ctx, id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT area, weight, mean, sd, lower_bound, upper_bound, observed
		FROM area_estimate
		WHERE run_id = $1 AND area = $2
	`, id, code)
	a, err := scanArea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAreaNotFound
	}
	if err != nil {
		return nil, err
	}
	a.RunID = id
	return a, nil
}

// DeleteRun removes a run and its area rows.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM area_estimate WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete areas: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM mrp_run WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

func (s *Store) requireRun(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM mrp_run WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query run: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArea(sc scanner) (*models.AreaEstimateResponse, error) {
	var (
		a        models.AreaEstimateResponse
		observed sql.NullFloat64
	)
	err := sc.Scan(&a.Estimate.Area, &a.Estimate.Weight, &a.Estimate.Summary.Mean, &a.Estimate.Summary.SD,
		&a.Estimate.Summary.Lower, &a.Estimate.Summary.Upper, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan area: %w", err)
	}
	if observed.Valid {
		v := observed.Float64
		a.Observed = &v
	}
	return &a, nil
}
