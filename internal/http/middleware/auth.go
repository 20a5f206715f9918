// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication and role authorization:
//
//   - Authenticate verifies "Authorization: Bearer <id token>" with an
//     identity.Verifier and stores the caller's uid, role and token in the Gin
//     context. Missing or invalid tokens are rejected with 401.
//   - Authorize evaluates one static Policy (route → allowed roles) for every
//     request. Routes absent from the policy are denied. A request without an
//     authenticated identity gets 401; a role outside the allowed set gets 403.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/identity"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyRole     = "role"
	ctxKeyIdentity = "identity"
)

// Policy maps "METHOD /registered/route" (Gin's FullPath) to the roles
// allowed to call it.
type Policy map[string][]domain.Role

// Allowed reports whether role may call method on route. Unknown routes are
// never allowed.
func (p Policy) Allowed(method, route string, role domain.Role) bool {
	roles, ok := p[PolicyKey(method, route)]
	if !ok {
		return false
	}
	return role.In(roles...)
}

// PolicyKey builds the lookup key used by Policy.
func PolicyKey(method, route string) string { return method + " " + route }

// Authenticate returns a middleware that verifies bearer id tokens.
func Authenticate(v identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		tok, err := v.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		c.Set(ctxKeyUserID, tok.UID)
		c.Set(ctxKeyIdentity, tok)
		if r, ok := domain.ParseRole(tok.Role()); ok {
			c.Set(ctxKeyRole, r)
		}
		c.Next()
	}
}

// Authorize returns a middleware enforcing p.
func Authorize(p Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxKeyIdentity); !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		role, _ := RoleFrom(c)
		if !p.Allowed(c.Request.Method, c.FullPath(), role) {
			abortJSON(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// RoleFrom returns the authenticated caller's role, if any.
func RoleFrom(c *gin.Context) (domain.Role, bool) {
	v, ok := c.Get(ctxKeyRole)
	if !ok {
		return "", false
	}
	r, ok := v.(domain.Role)
	return r, ok
}

// UserIDFrom returns the authenticated caller's uid, or "".
func UserIDFrom(c *gin.Context) string {
	v, _ := c.Get(ctxKeyUserID)
	return asString(v)
}

func bearerToken(h string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// abortJSON writes the standard error envelope and stops the chain.
func abortJSON(c *gin.Context, status int, code, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": asString(rid),
		"code":       code,
		"message":    msg,
	})
}
