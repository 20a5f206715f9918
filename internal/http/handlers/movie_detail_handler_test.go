package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/services"
)

func newDetailRouter(ds MovieDetailService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, ds, nil, nil, nil)
	r := gin.New()
	r.GET("/movie-details", h.ListMovieDetails)
	r.GET("/movie-details/:id", h.GetMovieDetail)
	r.POST("/movie-details", h.CreateMovieDetail)
	r.PUT("/movie-details/:id", h.UpdateMovieDetail)
	r.DELETE("/movie-details/:id", h.DeleteMovieDetail)
	return r
}

func TestListMovieDetails_ETagAnd304(t *testing.T) {
	ts := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	listCalls := 0
	ds := &stubDetails{
		stats: func(context.Context) (int64, *time.Time, error) { return 3, &ts, nil },
		list: func(context.Context) ([]domain.MovieDetail, error) {
			listCalls++
			return []domain.MovieDetail{{ID: "d1"}, {ID: "d2"}, {ID: "d3"}}, nil
		},
	}
	r := newDetailRouter(ds)

	w := do(t, r, http.MethodGet, "/movie-details", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" || etag[:2] != "W/" {
		t.Fatalf("expected weak ETag, got %q", etag)
	}
	if got := decode[[]domain.MovieDetail](t, w); len(got) != 3 {
		t.Fatalf("len=%d", len(got))
	}

	w2 := do(t, r, http.MethodGet, "/movie-details", nil, map[string]string{"If-None-Match": etag})
	if w2.Code != http.StatusNotModified {
		t.Fatalf("status=%d; want 304", w2.Code)
	}
	if listCalls != 1 {
		t.Fatalf("list should be skipped on 304, calls=%d", listCalls)
	}

	w3 := do(t, r, http.MethodGet, "/movie-details", nil, map[string]string{"If-None-Match": `W/"stale"`})
	if w3.Code != http.StatusOK {
		t.Fatalf("stale etag: status=%d", w3.Code)
	}
}

func TestListMovieDetails_StatsFailureStillLists(t *testing.T) {
	ds := &stubDetails{
		stats: func(context.Context) (int64, *time.Time, error) { return 0, nil, errors.New("boom") },
		list:  func(context.Context) ([]domain.MovieDetail, error) { return []domain.MovieDetail{}, nil },
	}
	w := do(t, newDetailRouter(ds), http.MethodGet, "/movie-details", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("ETag") != "" {
		t.Fatalf("status=%d etag=%q", w.Code, w.Header().Get("ETag"))
	}
	if w.Body.String() != "[]" {
		t.Fatalf("empty list must encode as [], got %s", w.Body.String())
	}
}

func TestGetMovieDetail_NotFound(t *testing.T) {
	ds := &stubDetails{get: func(context.Context, string) (*domain.MovieDetail, error) {
		return nil, services.ErrMovieDetailNotFound
	}}
	w := do(t, newDetailRouter(ds), http.MethodGet, "/movie-details/x", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCreateMovieDetail_MapsPayload(t *testing.T) {
	var got services.MovieDetailInput
	ds := &stubDetails{create: func(_ context.Context, in services.MovieDetailInput) (*domain.MovieDetail, error) {
		got = in
		return &domain.MovieDetail{ID: "d-new", MovieID: in.MovieID, Title: in.Title}, nil
	}}
	body := map[string]any{
		"movie_id":     "4",
		"title":        "A New Hope",
		"release_date": "1977-05-25",
		"director":     "George Lucas",
		"producer":     "Gary Kurtz",
	}
	w := do(t, newDetailRouter(ds), http.MethodPost, "/movie-details", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.MovieID == nil || *got.MovieID != "4" || got.Director != "George Lucas" || got.ReleaseDate != "1977-05-25" {
		t.Fatalf("unexpected input: %+v", got)
	}
}

func TestCreateMovieDetail_EmptyBodyAllowed(t *testing.T) {
	ds := &stubDetails{create: func(_ context.Context, in services.MovieDetailInput) (*domain.MovieDetail, error) {
		return &domain.MovieDetail{ID: "d-empty"}, nil
	}}
	w := do(t, newDetailRouter(ds), http.MethodPost, "/movie-details", map[string]any{}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUpdateMovieDetail_And_Delete(t *testing.T) {
	ds := &stubDetails{
		upsert: func(_ context.Context, id string, in services.MovieDetailInput) (*domain.MovieDetail, error) {
			return &domain.MovieDetail{ID: id, MovieID: in.MovieID, Producer: in.Producer}, nil
		},
		del: func(_ context.Context, id string) error {
			if id == "gone" {
				return services.ErrMovieDetailNotFound
			}
			return nil
		},
	}
	r := newDetailRouter(ds)

	w := do(t, r, http.MethodPut, "/movie-details/d1", map[string]any{"movie_id": "m1", "producer": "P"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put status=%d", w.Code)
	}
	d := decode[domain.MovieDetail](t, w)
	if d.ID != "d1" || d.MovieID == nil || *d.MovieID != "m1" || d.Producer != "P" {
		t.Fatalf("unexpected detail: %+v", d)
	}

	if w := do(t, r, http.MethodDelete, "/movie-details/d1", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w := do(t, r, http.MethodDelete, "/movie-details/gone", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete missing status=%d", w.Code)
	}
}

func TestMovieDetailRequest_Input(t *testing.T) {
	in := MovieDetailRequest{MovieID: strptr("7"), Title: "T"}.input()
	if in.MovieID == nil || *in.MovieID != "7" || in.Title != "T" {
		t.Fatalf("unexpected input: %+v", in)
	}
}
