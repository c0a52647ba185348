// Package common defines shared constants and sentinel errors used across
// client and server layers of Peny. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// ErrInvalidToken covers every token verification failure: bad signature,
	// expiry, malformed input, wrong token kind.
	ErrInvalidToken = errors.New("invalid token")

	// ErrPersistenceUnavailable is returned when the database could not be
	// reached after all connection attempts. It is fatal at startup.
	ErrPersistenceUnavailable = errors.New("persistence layer unavailable")
)
