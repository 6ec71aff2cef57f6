// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidRunKey = errors.New("invalid run key")

// GenerateRunKey creates an HMAC-based key that authorizes destructive
// operations on a stored run. Deterministic, so nothing is stored.
func GenerateRunKey(runID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(runID))
	sum := h.Sum(nil)
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateRunKey checks a run key in constant time.
func ValidateRunKey(runID, runKey, salt string) error {
	expected := GenerateRunKey(runID, salt)
	if !hmac.Equal([]byte(runKey), []byte(expected)) {
		return ErrInvalidRunKey
	}
	return nil
}

// InputsHash fingerprints the raw input files of a run. Each part is
// length-prefixed so that moving bytes between parts changes the hash.
func InputsHash(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
