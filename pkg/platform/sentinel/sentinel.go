package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and external-collaborator
// clients return these (optionally wrapped) so services can translate them
// into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: optimistic version check lost, or unique constraint hit
// - ErrInvalidState: record in wrong state for the requested operation
// - ErrUnavailable: external ledger or content store unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
