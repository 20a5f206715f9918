// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file sets response hardening headers for the JSON API and lists the
// API's custom response headers in Access-Control-Expose-Headers so browser
// clients can read them. HSTS is opt-in and only sent over HTTPS, either
// direct TLS or a proxy reporting X-Forwarded-Proto: https.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultHSTSMaxAge   = 180 * 24 * time.Hour
	exposeHeadersHeader = "Access-Control-Expose-Headers"
)

// exposedHeaders are the custom response headers browser clients may read.
var exposedHeaders = []string{requestIDHeader, "ETag", "Idempotency-Replayed", "Retry-After"}

// SecurityOptions selects the optional header groups.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Enable
	// only when every hop up to the app is HTTPS.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days when <= 0.
	HSTSMaxAge time.Duration
	// NoStore forbids caching of any response. Leave off when clients
	// revalidate list ETags.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

type headerValue struct{ name, value string }

// securityHeaderSet resolves opts into the fixed headers written on every
// response and the HSTS value written on HTTPS ones ("" when disabled).
func securityHeaderSet(opts SecurityOptions) (always []headerValue, hsts string) {
	always = []headerValue{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opts.EnablePolicy {
		always = append(always,
			headerValue{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			headerValue{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	if opts.NoStore {
		always = append(always,
			headerValue{"Cache-Control", "no-store"},
			headerValue{"Pragma", "no-cache"},
			headerValue{"Expires", "0"},
		)
	}
	if opts.EnableHSTS {
		maxAge := opts.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = defaultHSTSMaxAge
		}
		hsts = "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"
	}
	return always, hsts
}

// SecurityHeaders writes the configured header set before the handler runs.
func SecurityHeaders(opts SecurityOptions) gin.HandlerFunc {
	always, hsts := securityHeaderSet(opts)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, hv := range always {
			h.Set(hv.name, hv.value)
		}
		if hsts != "" && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		mergeExposeHeaders(h, exposedHeaders)
		c.Next()
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// mergeExposeHeaders appends names not yet present (case-insensitive) to the
// existing Access-Control-Expose-Headers value.
func mergeExposeHeaders(h http.Header, names []string) {
	var list []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(h.Get(exposeHeadersHeader), ",") {
		if p = strings.TrimSpace(p); p != "" && !seen[strings.ToLower(p)] {
			seen[strings.ToLower(p)] = true
			list = append(list, p)
		}
	}
	for _, n := range names {
		if !seen[strings.ToLower(n)] {
			seen[strings.ToLower(n)] = true
			list = append(list, n)
		}
	}
	if len(list) > 0 {
		h.Set(exposeHeadersHeader, strings.Join(list, ", "))
	}
}
