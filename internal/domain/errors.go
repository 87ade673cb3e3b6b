package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrForbidden    = errors.New("domain: forbidden")
	ErrValidation   = errors.New("domain: validation failed")
)

// Audit and delivery errors never reach an HTTP caller; they are logged at
// the hook and dispatcher boundaries.
var (
	ErrActorNotFound   = errors.New("audit: actor not found")
	ErrMissingSnapshot = errors.New("audit: missing pre-mutation snapshot")
	ErrDelivery        = errors.New("notify: delivery failed")
)
