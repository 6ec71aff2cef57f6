// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil holds helpers shared by package tests: an in-memory
// SQLite database with the schema applied, canned run snapshots, and HTTP
// request and response helpers.
package testutil
