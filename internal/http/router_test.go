package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-movie-backend/internal/catalog"
	"github.com/tbourn/go-movie-backend/internal/config"
	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/http/middleware"
	"github.com/tbourn/go-movie-backend/internal/identity"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

// --- fake catalog ---
type fakeCatalog struct{ films []catalog.Film }

func (f fakeCatalog) ListFilms(context.Context) ([]catalog.Film, error) { return f.films, nil }
func (f fakeCatalog) GetFilm(_ context.Context, id string) (*catalog.Film, error) {
	for i := range f.films {
		if f.films[i].ID() == id {
			return &f.films[i], nil
		}
	}
	return nil, catalog.ErrFilmNotFound
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   100,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Identity: config.IdentityConfig{
			APIKey:          "test-api-key",
			SigningKey:      strings.Repeat("s", 32),
			Issuer:          "test-issuer",
			IDTokenTTL:      time.Hour,
			RefreshTokenTTL: time.Hour,
			CustomTokenTTL:  time.Minute,
		},
		IdempotencyTTL: time.Hour,
	}
}

type testServer struct {
	r  *gin.Engine
	db *gorm.DB
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	idp := identity.NewLocalProvider(db, cfg.Identity)
	idp.BcryptCost = 4
	cat := fakeCatalog{films: []catalog.Film{
		{EpisodeID: 4, Title: "A New Hope", Director: "George Lucas", Created: time.Date(2014, 12, 10, 14, 23, 31, 0, time.UTC)},
		{EpisodeID: 5, Title: "The Empire Strikes Back", Director: "Irvin Kershner"},
	}}
	r := gin.New()
	RegisterRoutes(r, db, cfg, idp, cat)
	return &testServer{r: r, db: db}
}

func (s *testServer) do(method, path, body, token string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

// login registers (if needed) and logs in, returning the uid and id token.
func (s *testServer) login(t *testing.T, email string) (string, string) {
	t.Helper()
	creds := `{"email":"` + email + `","password":"secret-pass"}`
	if w := s.do(http.MethodPost, "/api/v1/auth/register", creds, "", nil); w.Code != http.StatusCreated && w.Code != http.StatusBadRequest {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w := s.do(http.MethodPost, "/api/v1/auth/login", creds, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var tok identity.SessionTokens
	if err := json.Unmarshal(w.Body.Bytes(), &tok); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tok.IDToken == "" || tok.RefreshToken == "" || tok.LocalID == "" {
		t.Fatalf("incomplete tokens: %+v", tok)
	}
	return tok.LocalID, tok.IDToken
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	s := newTestServer(t, testConfig())

	// /health works
	w := s.do(http.MethodGet, "/health", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	// /metrics is wired
	w = s.do(http.MethodGet, "/metrics", "", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w = s.do(http.MethodGet, "/nope", "", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w = s.do(http.MethodPost, "/health", "", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off by default
	if w = s.do(http.MethodGet, "/swagger/index.html", "", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	s := newTestServer(t, cfg)

	w := s.do(http.MethodGet, "/health", "", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = s.do(http.MethodGet, "/health", "", "", map[string]string{"Origin": "http://evil.test"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be echoed, got %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	s := newTestServer(t, cfg)

	w := s.do(http.MethodGet, "/swagger/doc.json", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/movies") {
		t.Fatalf("swagger doc does not describe the movie routes")
	}
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, p := range []string{"/api/v1/movies", "/api/v1/movie-details", "/api/v1/users"} {
		if w := s.do(http.MethodGet, p, "", "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token = %d; want 401", p, w.Code)
		}
		if w := s.do(http.MethodGet, p, "", "garbage", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s with bad token = %d; want 401", p, w.Code)
		}
	}
}

func TestLoginFlow_RolePolicy(t *testing.T) {
	s := newTestServer(t, testConfig())
	uid, userTok := s.login(t, "luke@tatooine.org")

	// First login provisions a user record with the default role.
	var u domain.User
	if err := s.db.First(&u, "id = ?", uid).Error; err != nil {
		t.Fatalf("user record not provisioned: %v", err)
	}
	if u.Role != domain.RoleUser {
		t.Fatalf("role = %q; want user", u.Role)
	}

	// Readers see the reconciled catalog.
	w := s.do(http.MethodGet, "/api/v1/movies", "", userTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET movies as user = %d %s", w.Code, w.Body.String())
	}
	var movies []domain.Movie
	if err := json.Unmarshal(w.Body.Bytes(), &movies); err != nil {
		t.Fatalf("decode movies: %v", err)
	}
	if len(movies) != 2 || movies[0].ID != "4" || movies[0].Title != "A New Hope" {
		t.Fatalf("unexpected movies: %+v", movies)
	}
	if w := s.do(http.MethodGet, "/api/v1/movie-details", "", userTok, nil); w.Code != http.StatusOK {
		t.Fatalf("GET movie-details as user = %d", w.Code)
	}

	// Writes and user management need admin.
	if w := s.do(http.MethodPost, "/api/v1/movies", `{"title":"Rogue One"}`, userTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("POST movies as user = %d; want 403", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/v1/movie-details/x", "", userTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("DELETE movie-details as user = %d; want 403", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/users", "", userTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("GET users as user = %d; want 403", w.Code)
	}

	// Promote and log in again to pick up the new claim.
	if err := s.db.Model(&domain.User{}).Where("id = ?", uid).Update("role", domain.RoleAdmin).Error; err != nil {
		t.Fatalf("promote: %v", err)
	}
	_, adminTok := s.login(t, "luke@tatooine.org")

	w = s.do(http.MethodGet, "/api/v1/users", "", adminTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET users as admin = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("users list should carry an ETag")
	}

	// Lazy backfill: episode 5 is copied into the store on first read.
	w = s.do(http.MethodGet, "/api/v1/movies/5", "", adminTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET movies/5 = %d %s", w.Code, w.Body.String())
	}
	var n int64
	s.db.Model(&domain.Movie{}).Count(&n)
	if n != 1 {
		t.Fatalf("backfill should persist one movie, have %d", n)
	}
}

func TestCreateMovie_IdempotencyReplayThroughRouter(t *testing.T) {
	s := newTestServer(t, testConfig())
	uid, _ := s.login(t, "leia@alderaan.org")
	if err := s.db.Model(&domain.User{}).Where("id = ?", uid).Update("role", domain.RoleAdmin).Error; err != nil {
		t.Fatalf("promote: %v", err)
	}
	_, tok := s.login(t, "leia@alderaan.org")

	hdr := map[string]string{middleware.HeaderIdempotencyKey: "create-andor"}
	w1 := s.do(http.MethodPost, "/api/v1/movies", `{"title":"Andor"}`, tok, hdr)
	if w1.Code != http.StatusOK {
		t.Fatalf("first create = %d %s", w1.Code, w1.Body.String())
	}
	w2 := s.do(http.MethodPost, "/api/v1/movies", `{"title":"Andor"}`, tok, hdr)
	if w2.Code != http.StatusOK || w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay = %d replayed=%q", w2.Code, w2.Header().Get("Idempotency-Replayed"))
	}

	var m1, m2 domain.Movie
	_ = json.Unmarshal(w1.Body.Bytes(), &m1)
	_ = json.Unmarshal(w2.Body.Bytes(), &m2)
	if m1.ID == "" || m1.ID != m2.ID {
		t.Fatalf("replay returned %q; want %q", m2.ID, m1.ID)
	}
	var n int64
	s.db.Model(&domain.Movie{}).Where("title = ?", "Andor").Count(&n)
	if n != 1 {
		t.Fatalf("expected one stored movie, got %d", n)
	}

	if w := s.do(http.MethodPost, "/api/v1/movies", `{"title":"x"}`, tok, map[string]string{middleware.HeaderIdempotencyKey: "bad key"}); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid key = %d; want 400", w.Code)
	}
}

func TestAuthRoutes_Failures(t *testing.T) {
	s := newTestServer(t, testConfig())

	if w := s.do(http.MethodPost, "/api/v1/auth/register", `{"email":"nope","password":"secret-pass"}`, "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("register with bad email = %d", w.Code)
	}
	s.login(t, "han@falcon.io")
	w := s.do(http.MethodPost, "/api/v1/auth/register", `{"email":"han@falcon.io","password":"secret-pass"}`, "", nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "registration_failed") {
		t.Fatalf("duplicate register = %d %s", w.Code, w.Body.String())
	}
	w = s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"han@falcon.io","password":"wrong-pass"}`, "", nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "authentication_failed") {
		t.Fatalf("bad password login = %d %s", w.Code, w.Body.String())
	}
}

func Test_rolePolicy(t *testing.T) {
	p := rolePolicy("/api/v1")
	cases := []struct {
		method, route string
		role          domain.Role
		want          bool
	}{
		{http.MethodGet, "/api/v1/movies", domain.RoleUser, true},
		{http.MethodGet, "/api/v1/movie-details/:id", domain.RoleUser, true},
		{http.MethodPost, "/api/v1/movies", domain.RoleUser, false},
		{http.MethodPost, "/api/v1/movies", domain.RoleAdmin, true},
		{http.MethodPut, "/api/v1/movie-details/:id", domain.RoleAdmin, true},
		{http.MethodGet, "/api/v1/users", domain.RoleUser, false},
		{http.MethodDelete, "/api/v1/users/:id", domain.RoleAdmin, true},
		{http.MethodGet, "/api/v1/unknown", domain.RoleAdmin, false},
	}
	for _, tc := range cases {
		if got := p.Allowed(tc.method, tc.route, tc.role); got != tc.want {
			t.Errorf("%s %s as %s = %v; want %v", tc.method, tc.route, tc.role, got, tc.want)
		}
	}

	root := rolePolicy("/")
	if !root.Allowed(http.MethodGet, "/movies", domain.RoleUser) {
		t.Fatalf("root-mounted policy should key routes without a prefix")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
