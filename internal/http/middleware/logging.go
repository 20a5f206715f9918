// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation id injector, the structured access
// logger and the panic recovery handler:
//
//   - RequestID() reuses a well-formed inbound X-Request-ID or mints a UUID.
//   - Logger() attaches a request-scoped zerolog.Logger to both the Gin
//     context and the request context, then writes one access line per
//     request at a level picked from the outcome.
//   - Recovery() turns panics into the JSON 500 envelope.
//
// Mount order is RequestID → Logger (or RedactingLogger) → Recovery so that
// panics are logged with the correlation id. Handlers use LoggerFrom(c);
// services use zerolog.Ctx(ctx), which resolves to the same logger.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	maxRequestIDLength = 128
	maxQueryLogLength  = 2048
)

// Inbound ids end up in logs and response headers, so only plain tokens are
// accepted.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// RequestID attaches (or propagates) a correlation identifier per request.
// An inbound X-Request-ID is reused when it is at most 128 token characters;
// otherwise a new UUIDv4 replaces it. The id is echoed in the response
// header and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(rid string) bool {
	return rid != "" && len(rid) <= maxRequestIDLength && requestIDPattern.MatchString(rid)
}

// Logger writes a structured access log for each request.
//
// The request-scoped logger carries request_id, method, path (route when
// matched, raw URL path otherwise) and trace_id when a span is active. The
// access line adds client metadata, user_id (resolved after the chain, since
// Authenticate is mounted on route groups), status, latency and sizes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := requestLogger(c)
		attachLogger(c, &l)

		c.Next()

		access := l.With().
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			// ContentLength can be -1 if unknown.
			Int64("bytes_in", c.Request.ContentLength).
			Str("user_id", UserIDFrom(c)).
			Logger()

		ev := accessEvent(&access, c.Writer.Status(), len(c.Errors) > 0)
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg("request")
	}
}

// requestLogger derives the per-request logger from the global one.
func requestLogger(c *gin.Context) zerolog.Logger {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	rid, _ := c.Get(requestIDKey)

	ctx := log.With().
		Str("request_id", asString(rid)).
		Str("method", c.Request.Method).
		Str("path", path)
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
		ctx = ctx.Str("trace_id", sc.TraceID().String())
	}
	return ctx.Logger()
}

// accessEvent picks the level for an access line: error for 5xx or when
// handlers recorded errors, warn for 4xx, info otherwise.
func accessEvent(l *zerolog.Logger, status int, hasErrors bool) *zerolog.Event {
	switch {
	case hasErrors, status >= http.StatusInternalServerError:
		return l.Error()
	case status >= http.StatusBadRequest:
		return l.Warn()
	default:
		return l.Info()
	}
}

// Recovery intercepts panics, logs the stack, and replies with the JSON 500
// envelope when nothing was written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			rid, _ := c.Get(requestIDKey)
			c.Header(requestIDHeader, asString(rid))
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a logger derived from the
// global one when none was attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// attachLogger stores l on the Gin context and on the request context so
// that both LoggerFrom(c) and zerolog.Ctx(ctx) resolve to it.
func attachLogger(c *gin.Context, l *zerolog.Logger) {
	c.Set(loggerKey, l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes and appends an ellipsis. max <= 0 disables
// truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
