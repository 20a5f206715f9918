// Movie HTTP handlers.
//
// This file exposes REST endpoints for movies:
//   - GET    /movies        (reconciled list of local movies and the film catalog)
//   - GET    /movies/{id}   (resolve locally or backfill from the catalog)
//   - POST   /movies        (create, Idempotency-Key supported)
//   - PUT    /movies/{id}   (upsert)
//   - DELETE /movies/{id}   (soft delete)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//
// DTOs
//

// MovieRequest is the JSON payload for creating or replacing a movie.
type MovieRequest struct {
	// Title is the movie title (1–255 chars).
	Title string `json:"title" binding:"required,max=255" example:"The Empire Strikes Back"`
}

//
// Handlers
//

// ListMovies godoc
// @ID          listMovies
// @Summary     List movies
// @Description Returns the film catalog merged with locally stored movies. Catalog films
// @Description matched to a local record (by external id, then title) are represented by
// @Description the local record; unmatched local movies are appended.
// @Tags        Movies
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {array}   domain.Movie
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     502  {object}  handlers.ErrorResponse  "Film catalog unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movies [get]
func (h *Handlers) ListMovies(c *gin.Context) {
	items, err := h.movies.List(c.Request.Context())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetMovie godoc
// @ID          getMovie
// @Summary     Get a movie
// @Description Returns the stored movie with this id (soft-deleted records included). When
// @Description absent locally, the film with this episode id is fetched from the catalog and
// @Description stored together with its detail record.
// @Tags        Movies
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Movie ID or catalog episode id"  example(4)
//
// @Success     200  {object}  domain.Movie
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Movie not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Film catalog unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movies/{id} [get]
func (h *Handlers) GetMovie(c *gin.Context) {
	m, err := h.movies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// CreateMovie godoc
// @ID          createMovie
// @Summary     Create a movie
// @Description Stores a movie under a server-generated id.
// @Description Supports idempotency via the Idempotency-Key header (same key → same movie).
// @Tags        Movies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                 false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.MovieRequest  true   "Movie payload"
//
// @Success     200  {object}  domain.Movie
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movies [post]
func (h *Handlers) CreateMovie(c *gin.Context) {
	var req MovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	if replayCreate(h, c, h.movies.Get) {
		return
	}

	m, err := h.movies.Create(c.Request.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		failFrom(c, err)
		return
	}
	h.rememberCreate(c, m.ID, http.StatusOK)
	ok(c, http.StatusOK, m)
}

// UpdateMovie godoc
// @ID          updateMovie
// @Summary     Create or replace a movie
// @Description Writes the movie at the given id. An existing soft-delete flag and creation
// @Description time are kept.
// @Tags        Movies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                 true  "Movie ID"
// @Param       body  body  handlers.MovieRequest  true  "Movie payload"
//
// @Success     200  {object}  domain.Movie
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movies/{id} [put]
func (h *Handlers) UpdateMovie(c *gin.Context) {
	var req MovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bindMessage(err))
		return
	}
	m, err := h.movies.Upsert(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Title))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMovie godoc
// @ID          deleteMovie
// @Summary     Soft-delete a movie
// @Description Marks the movie as deleted. The record stays readable with deleted=true.
// @Tags        Movies
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Movie ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Movie not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movies/{id} [delete]
func (h *Handlers) DeleteMovie(c *gin.Context) {
	if err := h.movies.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	noContent(c)
}
