// User HTTP handlers (admin only).
//
// This file exposes REST endpoints for application users:
//   - GET    /users        (list, ETag support)
//   - GET    /users/{id}
//   - POST   /users        (create, Idempotency-Key supported)
//   - PUT    /users/{id}   (upsert role)
//   - DELETE /users/{id}   (soft delete)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//
// DTOs
//

// CreateUserRequest is the JSON payload for creating a user. ID is normally
// the identity provider's subject id; a UUID is generated when omitted.
type CreateUserRequest struct {
	ID   string `json:"id"   binding:"omitempty,max=128"   example:"b1946ac92492d2347c6235b4d2611184"`
	Role string `json:"role" binding:"omitempty,role"      example:"admin"`
}

// UpdateUserRequest is the JSON payload for replacing a user's role. An
// empty role keeps the stored one.
type UpdateUserRequest struct {
	Role string `json:"role" binding:"omitempty,role" example:"user"`
}

//
// Handlers
//

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Description Returns every user record, soft-deleted ones included. Supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {array}   domain.User
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	if notModified(c, "users", h.users.Stats) {
		return
	}
	items, err := h.users.List(c.Request.Context())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "User ID (subject id)"
//
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// CreateUser godoc
// @ID          createUser
// @Summary     Create a user
// @Description Stores a user record. The role defaults to "user".
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                      false  "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateUserRequest  true   "User payload"
//
// @Success     200  {object}  domain.User
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     409  {object}  handlers.ErrorResponse  "User already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	if replayCreate(h, c, h.users.Get) {
		return
	}

	u, err := h.users.Create(c.Request.Context(), strings.TrimSpace(req.ID), req.Role)
	if err != nil {
		failFrom(c, err)
		return
	}
	h.rememberCreate(c, u.ID, http.StatusOK)
	ok(c, http.StatusOK, u)
}

// UpdateUser godoc
// @ID          updateUser
// @Summary     Create or replace a user
// @Description Writes the user at the given id. An empty role keeps the stored role (or the
// @Description default for a new record); the soft-delete flag is kept.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                      true  "User ID (subject id)"
// @Param       body  body  handlers.UpdateUserRequest  true  "User payload"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [put]
func (h *Handlers) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	u, err := h.users.Upsert(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Soft-delete a user
// @Tags        Users
// @Security    BearerAuth
//
// @Param       id  path  string  true  "User ID (subject id)"
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	noContent(c)
}
