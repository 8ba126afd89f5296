package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no actor can be resolved from the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermissionDenied is returned when the actor's role or party membership
	// does not allow the operation. Distinct from ErrUnauthenticated so adapters
	// can map 401 vs 403 consistently.
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrFailedPrecondition covers state-machine and feature-flag rejections.
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrNotFound           = errors.New("resource not found")
	// ErrNotImplemented is the first-class "provider not yet enabled" failure.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidTransition signals an edge absent from the escrow transition table.
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyRequired = errors.New("idempotency key required")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
)
