package model

import "errors"

// Failure kinds returned by the service layer. Callers test them with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation is malformed input, rejected before any lookup.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidReference is an unknown client or trip id.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrInsufficientCapacity means the trip does not have enough seats.
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrNotFound is a missing record addressed by id.
	ErrNotFound = errors.New("not found")
	// ErrTransientConflict is a lock conflict or timeout; the call is safe to retry.
	ErrTransientConflict = errors.New("transient conflict")
	// ErrPersistence is an unexpected storage failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrConflict is a write blocked by dependent rows or a unique key.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is a failed credential check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is an authenticated caller that may not proceed.
	ErrForbidden = errors.New("forbidden")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrValidation, "validation_failed"},
	{ErrInvalidReference, "invalid_reference"},
	{ErrInsufficientCapacity, "insufficient_capacity"},
	{ErrNotFound, "not_found"},
	{ErrTransientConflict, "transient_conflict"},
	{ErrConflict, "conflict"},
	{ErrUnauthorized, "unauthorized"},
	{ErrForbidden, "forbidden"},
	{ErrPersistence, "persistence_failure"},
}

// ErrorCode returns the stable code for err's kind. Anything unclassified
// reports as a persistence failure.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "persistence_failure"
}
