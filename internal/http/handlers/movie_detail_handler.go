// Movie detail HTTP handlers.
//
// This file exposes REST endpoints for movie details:
//   - GET    /movie-details        (list, ETag support)
//   - GET    /movie-details/{id}
//   - POST   /movie-details        (create, Idempotency-Key supported)
//   - PUT    /movie-details/{id}   (upsert)
//   - DELETE /movie-details/{id}   (soft delete)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/services"
)

//
// DTOs
//

// MovieDetailRequest is the JSON payload for creating or replacing a movie
// detail. All fields are optional.
type MovieDetailRequest struct {
	// MovieID optionally links the detail to a movie; it is not enforced.
	MovieID     *string `json:"movie_id"     binding:"omitempty,max=64"  example:"4"`
	Title       string  `json:"title"        binding:"max=255"           example:"A New Hope"`
	ReleaseDate string  `json:"release_date" binding:"max=32"            example:"1977-05-25"`
	Director    string  `json:"director"     binding:"max=255"           example:"George Lucas"`
	Producer    string  `json:"producer"     binding:"max=255"           example:"Gary Kurtz, Rick McCallum"`
}

func (r MovieDetailRequest) input() services.MovieDetailInput {
	return services.MovieDetailInput{
		MovieID:     r.MovieID,
		Title:       r.Title,
		ReleaseDate: r.ReleaseDate,
		Director:    r.Director,
		Producer:    r.Producer,
	}
}

//
// Handlers
//

// ListMovieDetails godoc
// @ID          listMovieDetails
// @Summary     List movie details
// @Description Returns every movie detail, soft-deleted ones included. Supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        MovieDetails
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"movie-details:3:1700000000\")
//
// @Success     200  {array}   domain.MovieDetail
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-details [get]
func (h *Handlers) ListMovieDetails(c *gin.Context) {
	if notModified(c, "movie-details", h.details.Stats) {
		return
	}
	items, err := h.details.List(c.Request.Context())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetMovieDetail godoc
// @ID          getMovieDetail
// @Summary     Get a movie detail
// @Tags        MovieDetails
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Movie detail ID"
//
// @Success     200  {object}  domain.MovieDetail
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Movie detail not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-details/{id} [get]
func (h *Handlers) GetMovieDetail(c *gin.Context) {
	d, err := h.details.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// CreateMovieDetail godoc
// @ID          createMovieDetail
// @Summary     Create a movie detail
// @Description Stores a movie detail under a server-generated id.
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        MovieDetails
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                       false  "Idempotency key for safe retries"
// @Param       body             body    handlers.MovieDetailRequest  true   "Movie detail payload"
//
// @Success     200  {object}  domain.MovieDetail
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-details [post]
func (h *Handlers) CreateMovieDetail(c *gin.Context) {
	var req MovieDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	if replayCreate(h, c, h.details.Get) {
		return
	}

	d, err := h.details.Create(c.Request.Context(), req.input())
	if err != nil {
		failFrom(c, err)
		return
	}
	h.rememberCreate(c, d.ID, http.StatusOK)
	ok(c, http.StatusOK, d)
}

// UpdateMovieDetail godoc
// @ID          updateMovieDetail
// @Summary     Create or replace a movie detail
// @Description Writes the detail at the given id, replacing every writable field. An existing
// @Description soft-delete flag and creation time are kept.
// @Tags        MovieDetails
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                       true  "Movie detail ID"
// @Param       body  body  handlers.MovieDetailRequest  true  "Movie detail payload"
//
// @Success     200  {object}  domain.MovieDetail
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-details/{id} [put]
func (h *Handlers) UpdateMovieDetail(c *gin.Context) {
	var req MovieDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	d, err := h.details.Upsert(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteMovieDetail godoc
// @ID          deleteMovieDetail
// @Summary     Soft-delete a movie detail
// @Tags        MovieDetails
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Movie detail ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Movie detail not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-details/{id} [delete]
func (h *Handlers) DeleteMovieDetail(c *gin.Context) {
	if err := h.details.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	noContent(c)
}
