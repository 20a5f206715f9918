// Package repo implements the document store gateway over GORM. This file
// provides repository functions for the Movie collection.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// GetMovie fetches a movie by id, or ErrNotFound.
func GetMovie(ctx context.Context, db *gorm.DB, id string) (*domain.Movie, error) {
	return getDoc[domain.Movie](ctx, db, "id", id)
}

// GetMovieByExternalID fetches the movie backfilled from the upstream
// catalog entry with the given episode id, or ErrNotFound.
func GetMovieByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Movie, error) {
	return getDoc[domain.Movie](ctx, db, "external_id", externalID)
}

// ListMovies returns every movie, including soft-deleted ones, oldest first.
func ListMovies(ctx context.Context, db *gorm.DB) ([]domain.Movie, error) {
	return listDocs[domain.Movie](ctx, db)
}

// CreateMovie inserts m, assigning a UUID when m.ID is empty and stamping
// CreatedAt when unset. It returns ErrDuplicate if the id or external id is
// already taken.
func CreateMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return createDoc(ctx, db, m)
}

// PutMovie writes m in full at m.ID, inserting it when absent.
func PutMovie(ctx context.Context, db *gorm.DB, m *domain.Movie) error {
	return putDoc(ctx, db, m)
}

// PatchMovie updates the given columns of movie id. It returns ErrNotFound
// when no such movie exists.
func PatchMovie(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return patchDoc[domain.Movie](ctx, db, id, fields)
}
