package models

import "errors"

var (
	// ErrValidation: malformed or missing input. Nothing was written.
	ErrValidation = errors.New("validation error")
	// ErrAuth: secret mismatch or missing admin privilege. Nothing was written.
	ErrAuth = errors.New("not authorized")
	// ErrStorage: unexpected persistence failure. The transaction was rolled back.
	ErrStorage = errors.New("storage error")
	// ErrNotFound: referenced raffle or selection is absent.
	ErrNotFound = errors.New("not found")
)
