// Idempotent create support.
//
// When a POST carries a validated Idempotency-Key (see
// middleware.IdempotencyValidator) and the caller already completed a create
// with that key on the same route, the handler returns the originally created
// resource with `Idempotency-Replayed: true` instead of creating another one.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/http/middleware"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

// HeaderIdempotencyReplayed marks a response served from a recorded create.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// IdempotencyStore records which resource a (user, route, key) create
// produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string) (resourceID string, found bool, err error)
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

// RepoIdempotency is the GORM-backed IdempotencyStore.
type RepoIdempotency struct {
	DB  *gorm.DB
	TTL time.Duration
}

// NewRepoIdempotency returns a store whose records expire after ttl.
func NewRepoIdempotency(db *gorm.DB, ttl time.Duration) *RepoIdempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RepoIdempotency{DB: db, TTL: ttl}
}

// Lookup returns the resource id recorded for the key, if still valid.
func (s *RepoIdempotency) Lookup(ctx context.Context, userID, scope, key string) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// Remember records resourceID for the key. A concurrent duplicate is not an
// error: the first writer's record stands.
func (s *RepoIdempotency) Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, resourceID, status, s.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Exists satisfies middleware.IdempotencyLookup.
func (s *RepoIdempotency) Exists(ctx context.Context, userID, scope, key string, _ time.Time) (bool, error) {
	_, found, err := s.Lookup(ctx, userID, scope, key)
	return found, err
}

// replayCreate writes the previously created resource and reports true when
// the request is a replay. Lookup failures fall through to normal processing.
func replayCreate[T any](h *Handlers, c *gin.Context, get func(context.Context, string) (*T, error)) bool {
	if h.idem == nil {
		return false
	}
	key, has := middleware.GetIdempotencyKey(c)
	uid := middleware.UserIDFrom(c)
	if !has || uid == "" {
		return false
	}
	ctx := c.Request.Context()
	id, found, err := h.idem.Lookup(ctx, uid, c.FullPath(), key)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		return false
	}
	if !found {
		return false
	}
	prev, err := get(ctx, id)
	if err != nil {
		return false
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	ok(c, http.StatusOK, prev)
	return true
}

// rememberCreate records the created resource for the request's key. Best
// effort: the create already succeeded.
func (h *Handlers) rememberCreate(c *gin.Context, resourceID string, status int) {
	if h.idem == nil {
		return
	}
	key, has := middleware.GetIdempotencyKey(c)
	uid := middleware.UserIDFrom(c)
	if !has || uid == "" {
		return
	}
	if err := h.idem.Remember(c.Request.Context(), uid, c.FullPath(), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
	}
}
