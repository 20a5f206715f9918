package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-movie-backend/internal/catalog"
	"github.com/tbourn/go-movie-backend/internal/domain"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Movie{}, &domain.MovieDetail{}, &domain.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// One connection serializes access; shared-cache SQLite reports table
	// locks instead of waiting.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func strptr(s string) *string { return &s }

func film(ep int, title string) catalog.Film {
	return catalog.Film{
		EpisodeID:   ep,
		Title:       title,
		Director:    "director " + title,
		Producer:    "producer " + title,
		ReleaseDate: "1977-05-25",
		Created:     time.Date(2014, 12, 10, 14, 23, 31, 0, time.UTC),
	}
}

// fakeCatalog serves a fixed film list and counts calls.
type fakeCatalog struct {
	films   []catalog.Film
	listErr error
	getErr  error
	delay   time.Duration

	listCalls int32
	getCalls  int32
}

func (f *fakeCatalog) ListFilms(ctx context.Context) ([]catalog.Film, error) {
	atomic.AddInt32(&f.listCalls, 1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]catalog.Film, len(f.films))
	copy(out, f.films)
	return out, nil
}

func (f *fakeCatalog) GetFilm(ctx context.Context, id string) (*catalog.Film, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.films {
		if f.films[i].ID() == id {
			fm := f.films[i]
			return &fm, nil
		}
	}
	return nil, catalog.ErrFilmNotFound
}

// recorder collects the order of identity provider calls.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
