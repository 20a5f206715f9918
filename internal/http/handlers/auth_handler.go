// Auth HTTP handlers (public).
//
// This file exposes:
//   - POST /auth/register   (create an identity)
//   - POST /auth/login      (exchange credentials for an id/refresh token pair)
//
// Login failures are reported with one code and message whatever step failed;
// the failing step is only visible in server logs.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for registration.
type RegisterRequest struct {
	Email    string `json:"email"    binding:"required,email,max=320" example:"leia@rebellion.org"`
	Password string `json:"password" binding:"required,min=6,max=128" example:"alderaan77"`
}

// LoginRequest is the JSON payload for login.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required" example:"leia@rebellion.org"`
	Password string `json:"password" binding:"required" example:"alderaan77"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Register an account
// @Description Creates an identity with email and password. The application role is
// @Description provisioned on first login.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Credentials"
//
// @Success     201  {object}  identity.UserRecord
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid input or registration failed"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	rec, err := h.auth.Register(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusCreated, rec)
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies the credentials, provisions the role claim, revokes earlier sessions
// @Description and returns a fresh id/refresh token pair. Use the idToken as a bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  identity.SessionTokens
// @Failure     400  {object}  handlers.ErrorResponse  "Authentication failed"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	tokens, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, tokens)
}
