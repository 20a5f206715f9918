// Package services – MovieDetailService
//
// MovieDetailService manages descriptive movie records. Details have their own
// lifecycle: MovieID is informational and is not checked against the movie
// collection. Writes follow the same rules as movies: server-generated ids on
// create, upsert at a caller-chosen id on update, soft delete only.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

// MovieDetailInput carries the writable fields of a movie detail.
type MovieDetailInput struct {
	MovieID     *string
	Title       string
	ReleaseDate string
	Director    string
	Producer    string
}

func (in MovieDetailInput) apply(d *domain.MovieDetail) {
	if in.MovieID != nil {
		if id := strings.TrimSpace(*in.MovieID); id != "" {
			d.MovieID = &id
		}
	}
	d.Title = strings.TrimSpace(in.Title)
	d.ReleaseDate = strings.TrimSpace(in.ReleaseDate)
	d.Director = strings.TrimSpace(in.Director)
	d.Producer = strings.TrimSpace(in.Producer)
}

// MovieDetailService provides CRUD over movie details.
type MovieDetailService struct {
	DB *gorm.DB
}

// List returns every movie detail, including soft-deleted ones.
func (s *MovieDetailService) List(ctx context.Context) ([]domain.MovieDetail, error) {
	tr := otel.Tracer("services/MovieDetailService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListMovieDetails(ctx, s.DB)
}

// Stats returns the count and latest update time of the collection.
func (s *MovieDetailService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.CollectionStats(ctx, s.DB, &domain.MovieDetail{})
}

// Get returns the detail with id, deleted or not.
func (s *MovieDetailService) Get(ctx context.Context, id string) (*domain.MovieDetail, error) {
	tr := otel.Tracer("services/MovieDetailService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("movie_detail.id", id)))
	defer span.End()

	d, err := repo.GetMovieDetail(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMovieDetailNotFound
	}
	return d, err
}

// Create stores a new detail under a server-generated id.
func (s *MovieDetailService) Create(ctx context.Context, in MovieDetailInput) (*domain.MovieDetail, error) {
	tr := otel.Tracer("services/MovieDetailService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	d := &domain.MovieDetail{}
	in.apply(d)
	if err := repo.CreateMovieDetail(ctx, s.DB, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Upsert writes the detail at id, creating it when absent. An existing
// record keeps its creation time and deleted flag.
func (s *MovieDetailService) Upsert(ctx context.Context, id string, in MovieDetailInput) (*domain.MovieDetail, error) {
	tr := otel.Tracer("services/MovieDetailService")
	ctx, span := tr.Start(ctx, "Upsert", trace.WithAttributes(attribute.String("movie_detail.id", id)))
	defer span.End()

	d := &domain.MovieDetail{ID: id, CreatedAt: time.Now().UTC()}
	existing, err := repo.GetMovieDetail(ctx, s.DB, id)
	switch {
	case err == nil:
		d.CreatedAt = existing.CreatedAt
		d.Deleted = existing.Deleted
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}
	in.apply(d)

	if err := repo.PutMovieDetail(ctx, s.DB, d); err != nil {
		return nil, err
	}
	return repo.GetMovieDetail(ctx, s.DB, id)
}

// Delete soft-deletes the detail with id.
func (s *MovieDetailService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/MovieDetailService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("movie_detail.id", id)))
	defer span.End()

	err := repo.PatchMovieDetail(ctx, s.DB, id, map[string]any{"deleted": true})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMovieDetailNotFound
	}
	return err
}
