package domain

import "errors"

// Sentinel errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	// HTTP Status: 404 Not Found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates a user with the same id is already stored.
	// HTTP Status: 409 Conflict
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidRequest indicates a required request field is missing.
	// HTTP Status: 400 Bad Request
	ErrInvalidRequest = errors.New("invalid request")
)
