// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dbType, url string) (*sql.DB, error) {
	var driver string
	switch dbType {
	case TypeSQLite, "":
		driver = "sqlite"
	case TypePostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if driver == "sqlite" {
		// one writer; also keeps ":memory:" databases alive
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Statements are kept to the subset PostgreSQL and SQLite share.
// Timestamps are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS mrp_run (
    id TEXT PRIMARY KEY,
    variant TEXT NOT NULL CHECK (variant IN ('base', 'extended')),
    target_party TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    inputs_hash TEXT NOT NULL,
    national_mean DOUBLE PRECISION NOT NULL,
    national_sd DOUBLE PRECISION NOT NULL,
    national_lower DOUBLE PRECISION NOT NULL,
    national_upper DOUBLE PRECISION NOT NULL,
    area_count INTEGER NOT NULL,
    rmse DOUBLE PRECISION,
    payload TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_mrp_run_created_at ON mrp_run(created_at)`,
	`CREATE TABLE IF NOT EXISTS area_estimate (
    run_id TEXT NOT NULL REFERENCES mrp_run(id) ON DELETE CASCADE,
    area TEXT NOT NULL,
    weight DOUBLE PRECISION NOT NULL,
    mean DOUBLE PRECISION NOT NULL,
    sd DOUBLE PRECISION NOT NULL,
    lower_bound DOUBLE PRECISION NOT NULL,
    upper_bound DOUBLE PRECISION NOT NULL,
    observed DOUBLE PRECISION,
    PRIMARY KEY (run_id, area)
)`,
	`CREATE INDEX IF NOT EXISTS idx_area_estimate_run_id ON area_estimate(run_id)`,
}
