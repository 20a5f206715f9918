// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger used when
// LOG_REDACT is on. It writes the same access line as Logger() but scrubs
// identifiers from everything that came from the client: the query string,
// request headers, recorded errors and the caller's user id. Bodies are never
// logged.
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders:     []string{"X-Upstream-Token"},
//	    MaskQueryParams: []string{"signature"},
//	}))
package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const redactedValue = "[REDACTED]"

// RedactOptions extends the built-in masking sets. Names are matched
// case-insensitively.
type RedactOptions struct {
	// MaskHeaders are request headers whose values are replaced entirely.
	MaskHeaders []string
	// MaskQueryParams are query parameters whose values are replaced entirely.
	MaskQueryParams []string
}

// UUIDs go first so the phone pattern never sees their digit groups; the
// phone pattern is digits only for the same reason.
var redactPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

var (
	defaultMaskedHeaders     = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key", "Proxy-Authorization"}
	defaultMaskedQueryParams = []string{"password", "token", "id_token", "refresh_token", "api_key", "key"}
)

type redactor struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	return &redactor{
		headers: lowerSet(defaultMaskedHeaders, opts.MaskHeaders),
		params:  lowerSet(defaultMaskedQueryParams, opts.MaskQueryParams),
	}
}

func lowerSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, v := range l {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				set[v] = struct{}{}
			}
		}
	}
	return set
}

// scrub replaces ids, emails and phone numbers in s.
func (r *redactor) scrub(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// query masks listed parameters and scrubs the rest. The raw form is kept
// (no decoding) so the logged value mirrors what the client sent.
func (r *redactor) query(raw string) string {
	if raw == "" {
		return raw
	}
	pairs := strings.Split(raw, "&")
	for i, kv := range pairs {
		name, _, hasValue := strings.Cut(kv, "=")
		if _, masked := r.params[strings.ToLower(name)]; masked && hasValue {
			pairs[i] = name + "=" + redactedValue
			continue
		}
		pairs[i] = r.scrub(kv)
	}
	return strings.Join(pairs, "&")
}

func (r *redactor) header(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, masked := r.headers[strings.ToLower(k)]; masked {
			out[k] = redactedValue
			continue
		}
		out[k] = r.scrub(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger is Logger() with client-supplied values scrubbed. It
// attaches the same request-scoped logger and uses the same level rules.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()

		l := requestLogger(c)
		attachLogger(c, &l)
		headers := red.header(c.Request.Header)
		query := red.query(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		ev := accessEvent(&l, status, len(c.Errors) > 0)
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", red.scrub(c.Errors.String()))
		}
		ev.Str("user_id", red.scrub(UserIDFrom(c))).
			Str("remote_ip", c.ClientIP()).
			Str("query", query).
			Interface("headers", headers).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg("request")
	}
}
