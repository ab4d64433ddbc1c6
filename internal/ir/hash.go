package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old digests.
const (
	DomainAggregate = "casetrail/aggregate/v1"
	DomainPayload   = "casetrail/payload/v1"
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

// Fingerprint returns a stable digest of the full aggregate state.
// Two aggregates with the same fingerprint are field-for-field identical,
// including child order.
func Fingerprint(a Aggregate) (string, error) {
	canonical, err := MarshalCanonical(a.Image())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainAggregate, canonical), nil
}

// PayloadDigest returns a digest of an event payload, used to compare
// captured images without decoding them.
func PayloadDigest(payload IRObject) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("payload digest: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}
