// Package progress implements the resumable onboarding workflow engine:
// persisted stage progress keyed by domain version, integrity validation
// with rollback, debounced autosave, retry with backoff, and the active
// session registry.
package progress

import (
	"fmt"
	"strconv"
)

// SubjectKey identifies one analysis line: a domain plus an optional
// version snapshot. A nil VersionID is the domain's unversioned line.
type SubjectKey struct {
	DomainID  int64
	VersionID *int64
}

// NewSubjectKey builds a key for the unversioned line of a domain.
func NewSubjectKey(domainID int64) SubjectKey {
	return SubjectKey{DomainID: domainID}
}

// NewVersionedKey builds a key for one version snapshot of a domain.
func NewVersionedKey(domainID, versionID int64) SubjectKey {
	return SubjectKey{DomainID: domainID, VersionID: &versionID}
}

// Validate rejects malformed keys before any store access.
func (k SubjectKey) Validate() error {
	if k.DomainID < 1 {
		return &ValidationError{Field: "domainId", Reason: "must be a positive integer"}
	}
	if k.VersionID != nil && *k.VersionID < 1 {
		return &ValidationError{Field: "versionId", Reason: "must be a positive integer when set"}
	}
	return nil
}

// String returns the canonical form used as a map key and in logs,
// e.g. "7" or "7@42". Two keys are the same subject iff their canonical
// forms are equal.
func (k SubjectKey) String() string {
	if k.VersionID == nil {
		return strconv.FormatInt(k.DomainID, 10)
	}
	return fmt.Sprintf("%d@%d", k.DomainID, *k.VersionID)
}

// Equal reports whether two keys identify the same subject.
func (k SubjectKey) Equal(other SubjectKey) bool {
	if k.DomainID != other.DomainID {
		return false
	}
	if (k.VersionID == nil) != (other.VersionID == nil) {
		return false
	}
	return k.VersionID == nil || *k.VersionID == *other.VersionID
}
