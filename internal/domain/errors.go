package domain

import "errors"

// Error kinds shared by the store, the services and the transports.
// Concrete errors wrap one of these so callers can branch with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrConflict               = errors.New("conflict")
	ErrState                  = errors.New("invalid state")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnauthorized           = errors.New("unauthorized")
)
