// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers every handler writes through. Errors
// always leave as an ErrorResponse carrying a stable code; successes are
// plain JSON of the resource. List endpoints backed by a local table attach a
// weak ETag so clients can revalidate with If-None-Match.
//
//	HTTP/1.1 404 Not Found
//	{"request_id":"123e4567-e89b-12d3-a456-426614174000","code":"not_found","message":"movie not found"}
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/http/middleware"
)

const requestIDHeader = "X-Request-ID"

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating with server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Machine-readable code, one of the ErrCode* constants.
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to users.
	Message string `json:"message" example:"movie not found"`
}

// statsFunc reports a table's row count and latest update time.
type statsFunc func(context.Context) (int64, *time.Time, error)

// fail aborts with the error envelope. 5xx outcomes are logged with the
// request-scoped logger together with the last recorded gin error.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code)
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(requestIDHeader),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// collectionETag builds W/"<name>:<count>:<unixnano of latest update>".
func collectionETag(name string, count int64, latest *time.Time) string {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%d:%d"`, name, count, ts)
}

// notModified sets the collection ETag and, when If-None-Match matches it,
// writes 304 and returns true. A stats failure only drops the ETag; the list
// itself is still served.
func notModified(c *gin.Context, name string, stats statsFunc) bool {
	count, latest, err := stats(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Debug().Err(err).Str("collection", name).Msg("etag stats failed")
		return false
	}
	etag := collectionETag(name, count, latest)
	c.Header("ETag", etag)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// etagMatches applies the weak comparison If-None-Match uses: "*" matches
// anything and each listed tag matches ignoring the W/ prefix.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(tag), "W/") == want {
			return true
		}
	}
	return false
}
