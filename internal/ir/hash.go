package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainAction    = "vellum/action/v1"
	DomainEssential = "vellum/essential/v1"
	DomainVariant   = "vellum/variant/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionID computes the content-addressed ID for an action request.
// The ID is stable across restarts and replays given the same inputs.
func ActionID(documentID, component, action string, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"document_id": IRString(documentID),
		"component":   IRString(component),
		"action":      IRString(action),
		"args":        args,
		"seq":         IRNumber(float64(seq)),
	}

	canonical, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainAction, canonical), nil
}

// EssentialHash fingerprints a set of essential values. Replay compares
// fingerprints to detect nondeterminism.
func EssentialHash(values IRObject) (string, error) {
	canonical, err := marshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("EssentialHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEssential, canonical), nil
}

// VariantHash fingerprints a resolved variant assignment.
func VariantHash(assignment IRObject) (string, error) {
	canonical, err := marshalCanonical(assignment)
	if err != nil {
		return "", fmt.Errorf("VariantHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainVariant, canonical), nil
}

// MustActionID is like ActionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionID(documentID, component, action string, args IRObject, seq int64) string {
	id, err := ActionID(documentID, component, action, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
