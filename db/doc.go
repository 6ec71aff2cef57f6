// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the run database and creates its schema.

# Connections

Open accepts "sqlite" (modernc.org/sqlite, the default) or "postgres"
(lib/pq) and pings before returning:

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

SQLite connections are limited to a single open connection.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - mrp_run: one row per estimation run; national_* hold the national
    summary and payload the JSON snapshot
  - area_estimate: per-area summaries of a run, for direct queries

# Relationships

	mrp_run 1──* area_estimate

The foreign key uses ON DELETE CASCADE. SQLite does not enforce it by
default, so the store deletes area rows explicitly.
*/
package db
