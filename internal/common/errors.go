// Package common defines shared constants and sentinel errors used across
// client and server layers of moodkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("local storage failure")

	// Input errors.
	ErrValidation = errors.New("validation error")

	// Remote / session errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("remote unavailable")
	ErrNoSession    = errors.New("no authenticated user")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
