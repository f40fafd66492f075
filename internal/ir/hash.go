package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix leaves room for a future algorithm migration.
const (
	DomainState  = "statetree/state/v1"
	DomainAction = "statetree/action/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of v under domain. Equal values hash equal
// regardless of map iteration order or Unicode normalization form.
func Hash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// StateHash is Hash under DomainState.
func StateHash(v any) (string, error) {
	return Hash(DomainState, v)
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(v any) string {
	h, err := StateHash(v)
	if err != nil {
		panic(err)
	}
	return h
}
