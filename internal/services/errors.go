// Package services defines the business logic for movies, movie details,
// users and authentication. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrMovieNotFound indicates that a movie is neither stored locally nor
	// known to the upstream catalog.
	ErrMovieNotFound = errors.New("movie not found")

	// ErrMovieDetailNotFound indicates that the requested movie detail does
	// not exist.
	ErrMovieDetailNotFound = errors.New("movie detail not found")

	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrCatalogUnavailable is returned when the upstream catalog cannot be
	// reached or returns an unusable response.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrBackfillFailed is returned when a film found upstream could not be
	// persisted locally.
	ErrBackfillFailed = errors.New("backfill failed")

	// ErrAuthenticationFailed is the single error surfaced for any failed
	// step of the login sequence.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRegistrationFailed wraps identity provider errors during registration.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrInvalidRole is returned when a role is outside the known set.
	ErrInvalidRole = errors.New("role must be user or admin")

	// ErrEmptyTitle is returned when a movie or detail title is blank.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrUserExists is returned when creating a user whose id is taken.
	ErrUserExists = errors.New("user already exists")
)
