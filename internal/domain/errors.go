package domain

import "errors"

var (
	// ErrInvalidTransition is returned when an event is not legal on the current page.
	ErrInvalidTransition = errors.New("invalid page transition")

	// ErrSessionNotFound is returned by session stores for unknown or expired IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLocationUnavailable is returned by locators that answered but had no usable coordinate.
	ErrLocationUnavailable = errors.New("location unavailable")
)
