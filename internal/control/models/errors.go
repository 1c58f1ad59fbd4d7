package models

import "errors"

// Sentinel errors services wrap with %w so handlers can map them
// to HTTP status codes with errors.Is.
var (
	// ErrNotFound maps to 404.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition maps to 409: the state machine forbids the edge.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDependencyBlocked maps to 409: a depends_on task is missing or not done.
	ErrDependencyBlocked = errors.New("dependency blocked")
	// ErrAlreadyResolved maps to 409: verdict or response already recorded.
	ErrAlreadyResolved = errors.New("already resolved")
	// ErrDuplicateKey maps to 409: unique constraint conflict.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrValidation maps to 422: well-formed request, semantically wrong.
	ErrValidation = errors.New("validation failed")
	// ErrBudgetExceeded maps to 429: a spend cap would be breached.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrAdapterUnavailable signals the adapter CLI is missing from the host.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
)
