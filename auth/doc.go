// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides run keys and input fingerprints.

# Run Keys

Run keys use HMAC-SHA256 to create deterministic, verifiable keys:

	runKey := auth.GenerateRunKey(runID, salt)
	err := auth.ValidateRunKey(runID, runKey, salt)

The key is URL-safe base64 encoded without padding. The same run ID and salt
always produce the same key, so keys are never stored. Deleting a run
requires its key in the X-Run-Key header.

# Input Fingerprints

Every run records a SHA-256 over its survey, frame and results files:

	hash := auth.InputsHash(survey, frame, results)

Two runs with the same hash, seed and settings used identical inputs.
*/
package auth
