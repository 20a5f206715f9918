// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package), and the translation of service and
// repository errors into those codes (failFrom). These codes provide clients with a
// stable, machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., authentication_failed, upstream_unavailable) are
//     reserved for outcomes that cannot be conveyed by status alone.
//   - Absence (404) and failure (5xx) are never collapsed into one another.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "upstream_unavailable",
//     "message": "film catalog unavailable"
//   }

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeRegistrationFailed   = "registration_failed"
	ErrCodeUpstreamUnavailable  = "upstream_unavailable"
	ErrCodeMethodNotAllowed     = "method_not_allowed"
)

// failFrom maps a service error onto the error envelope. Unknown errors are
// reported as 500 with a generic message; the cause is logged by fail.
func failFrom(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMovieNotFound),
		errors.Is(err, services.ErrMovieDetailNotFound),
		errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrInvalidRole):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUserExists):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrCatalogUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "film catalog unavailable")
	case errors.Is(err, services.ErrAuthenticationFailed):
		fail(c, http.StatusBadRequest, ErrCodeAuthenticationFailed, "authentication failed")
	case errors.Is(err, services.ErrRegistrationFailed):
		fail(c, http.StatusBadRequest, ErrCodeRegistrationFailed, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
