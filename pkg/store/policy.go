package store

import (
	"fmt"
	"strings"
)

// IntegrityPolicy selects how LoadManifest treats a sidecar that is absent
// or does not verify.
type IntegrityPolicy int

const (
	// FailOpen logs a warning and returns the manifest. Rollback stays
	// available when a sidecar is lost or the backup was moved between
	// accounts.
	FailOpen IntegrityPolicy = iota

	// Strict refuses to return the manifest.
	Strict
)

func (p IntegrityPolicy) String() string {
	switch p {
	case FailOpen:
		return "fail-open"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("IntegrityPolicy(%d)", int(p))
	}
}

// ParseIntegrityPolicy parses "fail-open" or "strict". Empty is fail-open.
func ParseIntegrityPolicy(s string) (IntegrityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-open", "failopen":
		return FailOpen, nil
	case "strict":
		return Strict, nil
	}
	return FailOpen, fmt.Errorf("unknown integrity policy %q (want fail-open or strict)", s)
}

// IntegrityStatus is the outcome of checking a manifest against its sidecar.
type IntegrityStatus int

const (
	IntegrityValid     IntegrityStatus = iota // sidecar verifies
	IntegrityLegacy                           // no sidecar
	IntegrityMismatch                         // well-formed tag, wrong value
	IntegrityMalformed                        // sidecar is not a tag
)

func (s IntegrityStatus) String() string {
	switch s {
	case IntegrityValid:
		return "valid"
	case IntegrityLegacy:
		return "legacy"
	case IntegrityMismatch:
		return "mismatch"
	case IntegrityMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("IntegrityStatus(%d)", int(s))
	}
}
