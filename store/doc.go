// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store persists estimation runs.

# Saving

	st := store.New(conn)
	err := st.SaveRun(ctx, snap) // assigns a UUID when snap.ID is empty

The whole snapshot is stored as JSON in mrp_run.payload. Area summaries are
also written to area_estimate, and the national summary to columns of
mrp_run, so listings and single areas are read without decoding the
payload. Per-draw values live only in the payload.

# Reading

  - GetRun: full snapshot
  - ListRuns: summaries, newest first
  - GetAreaEstimates / GetAreaEstimate: area rows with observed shares

Missing runs return ErrRunNotFound, missing areas ErrAreaNotFound.

# Deleting

DeleteRun removes area rows and the run in one transaction.
*/
package store
