package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/identity"
	"github.com/tbourn/go-movie-backend/internal/services"
)

// ---------- stubs ----------

type stubMovies struct {
	list   func(ctx context.Context) ([]domain.Movie, error)
	get    func(ctx context.Context, id string) (*domain.Movie, error)
	create func(ctx context.Context, title string) (*domain.Movie, error)
	upsert func(ctx context.Context, id, title string) (*domain.Movie, error)
	del    func(ctx context.Context, id string) error
}

func (s *stubMovies) List(ctx context.Context) ([]domain.Movie, error) { return s.list(ctx) }
func (s *stubMovies) Get(ctx context.Context, id string) (*domain.Movie, error) {
	return s.get(ctx, id)
}
func (s *stubMovies) Create(ctx context.Context, title string) (*domain.Movie, error) {
	return s.create(ctx, title)
}
func (s *stubMovies) Upsert(ctx context.Context, id, title string) (*domain.Movie, error) {
	return s.upsert(ctx, id, title)
}
func (s *stubMovies) Delete(ctx context.Context, id string) error { return s.del(ctx, id) }

type stubDetails struct {
	list   func(ctx context.Context) ([]domain.MovieDetail, error)
	stats  func(ctx context.Context) (int64, *time.Time, error)
	get    func(ctx context.Context, id string) (*domain.MovieDetail, error)
	create func(ctx context.Context, in services.MovieDetailInput) (*domain.MovieDetail, error)
	upsert func(ctx context.Context, id string, in services.MovieDetailInput) (*domain.MovieDetail, error)
	del    func(ctx context.Context, id string) error
}

func (s *stubDetails) List(ctx context.Context) ([]domain.MovieDetail, error) { return s.list(ctx) }
func (s *stubDetails) Stats(ctx context.Context) (int64, *time.Time, error)   { return s.stats(ctx) }
func (s *stubDetails) Get(ctx context.Context, id string) (*domain.MovieDetail, error) {
	return s.get(ctx, id)
}
func (s *stubDetails) Create(ctx context.Context, in services.MovieDetailInput) (*domain.MovieDetail, error) {
	return s.create(ctx, in)
}
func (s *stubDetails) Upsert(ctx context.Context, id string, in services.MovieDetailInput) (*domain.MovieDetail, error) {
	return s.upsert(ctx, id, in)
}
func (s *stubDetails) Delete(ctx context.Context, id string) error { return s.del(ctx, id) }

type stubUsers struct {
	list   func(ctx context.Context) ([]domain.User, error)
	stats  func(ctx context.Context) (int64, *time.Time, error)
	get    func(ctx context.Context, id string) (*domain.User, error)
	create func(ctx context.Context, id, role string) (*domain.User, error)
	upsert func(ctx context.Context, id, role string) (*domain.User, error)
	del    func(ctx context.Context, id string) error
}

func (s *stubUsers) List(ctx context.Context) ([]domain.User, error)          { return s.list(ctx) }
func (s *stubUsers) Stats(ctx context.Context) (int64, *time.Time, error)     { return s.stats(ctx) }
func (s *stubUsers) Get(ctx context.Context, id string) (*domain.User, error) { return s.get(ctx, id) }
func (s *stubUsers) Create(ctx context.Context, id, role string) (*domain.User, error) {
	return s.create(ctx, id, role)
}
func (s *stubUsers) Upsert(ctx context.Context, id, role string) (*domain.User, error) {
	return s.upsert(ctx, id, role)
}
func (s *stubUsers) Delete(ctx context.Context, id string) error { return s.del(ctx, id) }

type stubAuth struct {
	register func(ctx context.Context, email, password string) (*identity.UserRecord, error)
	login    func(ctx context.Context, email, password string) (*identity.SessionTokens, error)
}

func (s *stubAuth) Register(ctx context.Context, email, password string) (*identity.UserRecord, error) {
	return s.register(ctx, email, password)
}
func (s *stubAuth) Login(ctx context.Context, email, password string) (*identity.SessionTokens, error) {
	return s.login(ctx, email, password)
}

// ---------- plumbing ----------

// asUser mimics Authenticate by placing a uid in the Gin context.
func asUser(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func strptr(s string) *string { return &s }
