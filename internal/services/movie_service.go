// Package services – MovieService
//
// This file implements MovieService, which owns the movie collection and its
// relationship with the upstream film catalog:
//
//   - List merges local movies with the catalog (see Reconcile).
//   - Get resolves a single movie from the store and, on a miss, backfills it
//     from the catalog together with a MovieDetail (read-through cache).
//   - Create, Upsert and Delete are the admin write path; Delete is a soft
//     delete and no write ever clears the deleted flag.
//
// Concurrent misses for the same id share one catalog fetch and one backfill
// through a singleflight group. Across processes, the unique external_id
// column makes the second backfill fail, and the loser serves the winner's row.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/catalog"
	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

var movieBackfills = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "movie_backfills_total",
		Help: "Catalog backfills attempted on single-movie misses, by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(movieBackfills)
}

// MovieService coordinates movie persistence and catalog reconciliation.
type MovieService struct {
	DB      *gorm.DB
	Catalog catalog.Catalog

	// MaxTitleRunes caps stored titles; zero disables the cap.
	MaxTitleRunes int

	group singleflight.Group
}

// NewMovieService constructs a MovieService.
func NewMovieService(db *gorm.DB, c catalog.Catalog) *MovieService {
	return &MovieService{DB: db, Catalog: c, MaxTitleRunes: 255}
}

// List returns the reconciled view of local movies and the upstream catalog.
// A catalog failure is returned as ErrCatalogUnavailable; no partial list is
// produced.
func (s *MovieService) List(ctx context.Context) ([]domain.Movie, error) {
	tr := otel.Tracer("services/MovieService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	locals, err := repo.ListMovies(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	films, err := s.Catalog.ListFilms(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	out := Reconcile(films, locals)
	span.SetAttributes(
		attribute.Int("movies.local", len(locals)),
		attribute.Int("movies.upstream", len(films)),
		attribute.Int("movies.merged", len(out)),
	)
	return out, nil
}

// Get resolves a movie by id. Stored movies (deleted or not) are returned
// without touching the catalog; otherwise the id is looked up as a catalog
// episode id and backfilled.
func (s *MovieService) Get(ctx context.Context, id string) (*domain.Movie, error) {
	tr := otel.Tracer("services/MovieService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("movie.id", id)))
	defer span.End()

	if m, err := s.findLocal(ctx, id); err == nil || !errors.Is(err, repo.ErrNotFound) {
		return m, err
	}

	v, err, shared := s.group.Do(id, func() (any, error) {
		return s.backfill(context.WithoutCancel(ctx), id)
	})
	span.SetAttributes(attribute.Bool("backfill.shared", shared))
	if err != nil {
		return nil, err
	}
	return v.(*domain.Movie), nil
}

// findLocal looks id up as a local id first, then as a recorded external id.
func (s *MovieService) findLocal(ctx context.Context, id string) (*domain.Movie, error) {
	m, err := repo.GetMovie(ctx, s.DB, id)
	if err == nil || !errors.Is(err, repo.ErrNotFound) {
		return m, err
	}
	return repo.GetMovieByExternalID(ctx, s.DB, id)
}

func (s *MovieService) backfill(ctx context.Context, id string) (*domain.Movie, error) {
	// Re-check: a concurrent group may have finished between our miss and now.
	if m, err := s.findLocal(ctx, id); err == nil || !errors.Is(err, repo.ErrNotFound) {
		return m, err
	}

	film, err := s.Catalog.GetFilm(ctx, id)
	if errors.Is(err, catalog.ErrFilmNotFound) {
		movieBackfills.WithLabelValues("not_found").Inc()
		return nil, ErrMovieNotFound
	}
	if err != nil {
		movieBackfills.WithLabelValues("upstream_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	ext := film.ID()
	movie := &domain.Movie{Title: s.clip(film.Title), ExternalID: &ext}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateMovie(ctx, tx, movie); err != nil {
			return err
		}
		d := film.Detail()
		d.Title = s.clip(d.Title)
		d.MovieID = &movie.ID
		return repo.CreateMovieDetail(ctx, tx, &d)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		if winner, gerr := repo.GetMovieByExternalID(ctx, s.DB, ext); gerr == nil {
			movieBackfills.WithLabelValues("raced").Inc()
			return winner, nil
		}
	}
	if err != nil {
		movieBackfills.WithLabelValues("persist_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrBackfillFailed, err)
	}
	movieBackfills.WithLabelValues("created").Inc()
	return movie, nil
}

// Create stores a new movie under a server-generated id.
func (s *MovieService) Create(ctx context.Context, title string) (*domain.Movie, error) {
	tr := otel.Tracer("services/MovieService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	title = s.clip(strings.TrimSpace(title))
	if title == "" {
		return nil, ErrEmptyTitle
	}
	m := &domain.Movie{Title: title}
	if err := repo.CreateMovie(ctx, s.DB, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert writes the movie at id, creating it when absent. An existing
// record keeps its creation time, external id and deleted flag.
func (s *MovieService) Upsert(ctx context.Context, id, title string) (*domain.Movie, error) {
	tr := otel.Tracer("services/MovieService")
	ctx, span := tr.Start(ctx, "Upsert", trace.WithAttributes(attribute.String("movie.id", id)))
	defer span.End()

	title = s.clip(strings.TrimSpace(title))
	if title == "" {
		return nil, ErrEmptyTitle
	}

	m := &domain.Movie{ID: id, Title: title, CreatedAt: time.Now().UTC()}
	existing, err := repo.GetMovie(ctx, s.DB, id)
	switch {
	case err == nil:
		m.CreatedAt = existing.CreatedAt
		m.ExternalID = existing.ExternalID
		m.Deleted = existing.Deleted
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	if err := repo.PutMovie(ctx, s.DB, m); err != nil {
		return nil, err
	}
	return repo.GetMovie(ctx, s.DB, id)
}

// Delete soft-deletes the movie with id.
func (s *MovieService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/MovieService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("movie.id", id)))
	defer span.End()

	err := repo.PatchMovie(ctx, s.DB, id, map[string]any{"deleted": true})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMovieNotFound
	}
	return err
}

func (s *MovieService) clip(title string) string {
	return clipRunes(title, s.MaxTitleRunes)
}

// clipRunes truncates s to at most n runes; n <= 0 disables truncation.
func clipRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
