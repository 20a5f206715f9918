package httpapi

import (
	"net/http"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/http/middleware"
)

var (
	readers = []domain.Role{domain.RoleUser, domain.RoleAdmin}
	admins  = []domain.Role{domain.RoleAdmin}
)

// rolePolicy returns the route → roles table for the protected API mounted
// at base. Routes missing from the table are denied.
func rolePolicy(base string) middleware.Policy {
	if base == "/" {
		base = ""
	}
	p := middleware.Policy{}
	allow := func(method, route string, roles []domain.Role) {
		p[middleware.PolicyKey(method, base+route)] = roles
	}

	for _, coll := range []string{"/movies", "/movie-details"} {
		allow(http.MethodGet, coll, readers)
		allow(http.MethodGet, coll+"/:id", readers)
		allow(http.MethodPost, coll, admins)
		allow(http.MethodPut, coll+"/:id", admins)
		allow(http.MethodDelete, coll+"/:id", admins)
	}

	allow(http.MethodGet, "/users", admins)
	allow(http.MethodGet, "/users/:id", admins)
	allow(http.MethodPost, "/users", admins)
	allow(http.MethodPut, "/users/:id", admins)
	allow(http.MethodDelete, "/users/:id", admins)

	return p
}
