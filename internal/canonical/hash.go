package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainArtifact = "hardstop/artifact/v1"
	DomainIncident = "hardstop/incident/v1"
	DomainConfig   = "hardstop/config/v1"
)

// Hash computes SHA-256 with domain separation over the canonical JSON form
// of v. Format: SHA256(domain + 0x00 + canonicalBytes). The null byte
// separator prevents domain/data boundary ambiguity.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashBytes(domain, data), nil
}

// HashBytes computes the domain-separated hash over pre-serialized bytes.
// The bytes must already be in canonical form for identity to be stable.
func HashBytes(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(domain string, v any) string {
	hash, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return hash
}
