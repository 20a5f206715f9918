package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

func TestCreateMovie_AssignsIDAndTimestamps(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	ctx := context.Background()

	m := &domain.Movie{Title: "The Empire Strikes Back"}
	if err := CreateMovie(ctx, db, m); err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set, got %+v", m)
	}

	got, err := GetMovie(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if got.Title != m.Title || got.Deleted {
		t.Fatalf("unexpected movie: %+v", got)
	}
}

func TestCreateMovie_DuplicateIDAndExternalID(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	ctx := context.Background()

	if err := CreateMovie(ctx, db, &domain.Movie{ID: "m1", Title: "A", ExternalID: strptr("4")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := CreateMovie(ctx, db, &domain.Movie{ID: "m1", Title: "B"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same id, got %v", err)
	}
	if err := CreateMovie(ctx, db, &domain.Movie{ID: "m2", Title: "A", ExternalID: strptr("4")}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for same external id, got %v", err)
	}
}

func TestGetMovie_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	if _, err := GetMovie(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMovie_StoreErrorIsNotNotFound(t *testing.T) {
	db := newTestDB(t /* no table */)
	_, err := GetMovie(context.Background(), db, "m1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a store error distinct from ErrNotFound, got %v", err)
	}
}

func TestGetMovieByExternalID(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	ctx := context.Background()

	if err := CreateMovie(ctx, db, &domain.Movie{ID: "m1", Title: "A New Hope", ExternalID: strptr("4")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := GetMovieByExternalID(ctx, db, "4")
	if err != nil || got.ID != "m1" {
		t.Fatalf("GetMovieByExternalID: got=%+v err=%v", got, err)
	}
	if _, err := GetMovieByExternalID(ctx, db, "5"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMovies_EmptyAndIncludesDeleted(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	ctx := context.Background()

	list, err := ListMovies(ctx, db)
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", list)
	}

	_ = CreateMovie(ctx, db, &domain.Movie{ID: "a", Title: "A"})
	_ = CreateMovie(ctx, db, &domain.Movie{ID: "b", Title: "B", Deleted: true})

	list, err = ListMovies(ctx, db)
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 movies (deleted included), got %d", len(list))
	}
}

func TestPutMovie_InsertsThenOverwrites(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	ctx := context.Background()

	if err := PutMovie(ctx, db, &domain.Movie{ID: "x", Title: "First"}); err != nil {
		t.Fatalf("PutMovie insert: %v", err)
	}
	if err := PutMovie(ctx, db, &domain.Movie{ID: "x", Title: "Second"}); err != nil {
		t.Fatalf("PutMovie overwrite: %v", err)
	}
	got, err := GetMovie(ctx, db, "x")
	if err != nil || got.Title != "Second" {
		t.Fatalf("expected overwritten title, got=%+v err=%v", got, err)
	}
}

func TestPatchMovie_SoftDeleteAndNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Movie{})
	ctx := context.Background()

	_ = CreateMovie(ctx, db, &domain.Movie{ID: "m1", Title: "A"})

	if err := PatchMovie(ctx, db, "m1", map[string]any{"deleted": true}); err != nil {
		t.Fatalf("PatchMovie: %v", err)
	}
	got, err := GetMovie(ctx, db, "m1")
	if err != nil || !got.Deleted || got.Title != "A" {
		t.Fatalf("expected soft-deleted readable record, got=%+v err=%v", got, err)
	}

	if err := PatchMovie(ctx, db, "missing", map[string]any{"deleted": true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
