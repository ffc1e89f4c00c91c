package subscription

import "errors"

var (
	// ErrInvalidInput is returned when a required field is missing.
	ErrInvalidInput = errors.New("subscription: invalid input")
	// ErrNotFound names a missing subscription document. Manager.Get reports
	// a missing document as store.ErrNotFound; the root package's IsNotFound
	// accepts either.
	ErrNotFound = errors.New("subscription: not found")
)
