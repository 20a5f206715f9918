// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on unsafe requests and flags
// replays. The middleware only classifies the request; handlers decide how a
// replay is answered (see handlers.replayCreate) and record completed creates.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key for an unsafe request.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemKeyMaxLen = 200
)

var (
	defaultIdemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

	errIdemKeyInvalid = errors.New("invalid Idempotency-Key")
)

// GetIdempotencyKey returns the key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s, _ := c.Value(ctxKeyIdemKey).(string)
	return s, s != ""
}

// IsReplay reports whether the caller already completed this operation with
// the same key on the same route.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

// IdempotencyOptions tunes key validation. Expiry belongs to the lookup.
type IdempotencyOptions struct {
	// MaxLen defaults to 200 when <= 0.
	MaxLen int
	// Pattern defaults to ^[A-Za-z0-9._~\-:]+$ when nil.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a live record exists for (userID, scope,
// key) at now. scope is the registered route, so the same key may be reused
// on different create endpoints.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

type idemKeyRule struct {
	maxLen  int
	pattern *regexp.Regexp
}

func (r idemKeyRule) check(key string) error {
	if len(key) > r.maxLen || !r.pattern.MatchString(key) {
		return errIdemKeyInvalid
	}
	return nil
}

// IdempotencyValidator runs on unsafe methods carrying an Idempotency-Key.
// An invalid key is rejected with 400. A valid key is stashed; when the
// caller is authenticated and lookup finds a live record the request is
// flagged as a replay and exempted from rate limiting. Lookup failures are
// logged and treated as a miss.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	rule := idemKeyRule{maxLen: opts.MaxLen, pattern: opts.Pattern}
	if rule.maxLen <= 0 {
		rule.maxLen = defaultIdemKeyMaxLen
	}
	if rule.pattern == nil {
		rule.pattern = defaultIdemKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if err := rule.check(key); err != nil {
			abortJSON(c, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid := UserIDFrom(c)
		if lookup == nil || uid == "" {
			c.Next()
			return
		}
		found, err := lookup(c.Request.Context(), uid, c.FullPath(), key, time.Now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		case found:
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
