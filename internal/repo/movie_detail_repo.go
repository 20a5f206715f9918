// Package repo implements the document store gateway over GORM. This file
// provides repository functions for the MovieDetail collection.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// GetMovieDetail fetches a movie detail by id, or ErrNotFound.
func GetMovieDetail(ctx context.Context, db *gorm.DB, id string) (*domain.MovieDetail, error) {
	return getDoc[domain.MovieDetail](ctx, db, "id", id)
}

// ListMovieDetails returns every movie detail, including soft-deleted ones.
func ListMovieDetails(ctx context.Context, db *gorm.DB) ([]domain.MovieDetail, error) {
	return listDocs[domain.MovieDetail](ctx, db)
}

// CreateMovieDetail inserts d, assigning a UUID when d.ID is empty.
func CreateMovieDetail(ctx context.Context, db *gorm.DB, d *domain.MovieDetail) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return createDoc(ctx, db, d)
}

// PutMovieDetail writes d in full at d.ID, inserting it when absent.
func PutMovieDetail(ctx context.Context, db *gorm.DB, d *domain.MovieDetail) error {
	return putDoc(ctx, db, d)
}

// PatchMovieDetail updates the given columns of detail id.
func PatchMovieDetail(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return patchDoc[domain.MovieDetail](ctx, db, id, fields)
}
