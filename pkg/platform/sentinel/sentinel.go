package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrAlreadyUsed: key (address, fingerprint) already has a record
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrOutOfRange: pagination start index past the end of the collection
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrOutOfRange   = errors.New("out of range")
	ErrUnavailable  = errors.New("unavailable")
)
