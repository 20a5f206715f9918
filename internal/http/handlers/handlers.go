// Package handlers exposes the HTTP endpoints of the movie backend.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services, and translate results into HTTP responses (including
// conditional responses and idempotent replays). Services are consumed
// through the narrow interfaces declared here so that tests can substitute
// stubs.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/identity"
	"github.com/tbourn/go-movie-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// MovieService lists, resolves and mutates movies.
type MovieService interface {
	// List returns the reconciled view of local movies and the upstream catalog.
	List(ctx context.Context) ([]domain.Movie, error)
	// Get resolves id locally or backfills it from the catalog.
	Get(ctx context.Context, id string) (*domain.Movie, error)
	Create(ctx context.Context, title string) (*domain.Movie, error)
	Upsert(ctx context.Context, id, title string) (*domain.Movie, error)
	Delete(ctx context.Context, id string) error
}

// MovieDetailService manages movie detail records.
type MovieDetailService interface {
	List(ctx context.Context) ([]domain.MovieDetail, error)
	// Stats returns the record count and latest update time for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
	Get(ctx context.Context, id string) (*domain.MovieDetail, error)
	Create(ctx context.Context, in services.MovieDetailInput) (*domain.MovieDetail, error)
	Upsert(ctx context.Context, id string, in services.MovieDetailInput) (*domain.MovieDetail, error)
	Delete(ctx context.Context, id string) error
}

// UserService manages application user records and their roles.
type UserService interface {
	List(ctx context.Context) ([]domain.User, error)
	// Stats returns the record count and latest update time for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, id, role string) (*domain.User, error)
	Upsert(ctx context.Context, id, role string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// AuthService registers identities and runs the login sequence.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*identity.UserRecord, error)
	Login(ctx context.Context, email, password string) (*identity.SessionTokens, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for auth, movies, movie details and
// users.
type Handlers struct {
	movies  MovieService
	details MovieDetailService
	users   UserService
	auth    AuthService
	idem    IdempotencyStore
}

// New constructs a Handlers instance bound to the given services. idem may be
// nil, in which case Idempotency-Key headers are validated but never
// replayed.
func New(movies MovieService, details MovieDetailService, users UserService, auth AuthService, idem IdempotencyStore) *Handlers {
	mustRegisterValidators()
	return &Handlers{
		movies:  movies,
		details: details,
		users:   users,
		auth:    auth,
		idem:    idem,
	}
}
