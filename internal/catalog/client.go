// Package catalog is the client for the upstream public film catalog (SWAPI).
//
// The client fetches the full films collection (following pagination) and
// resolves a single film by its episode id. Wire records are mapped into the
// Film type; callers convert them to domain values with Film.Movie and
// Film.Detail.
//
// Every request is traced with OpenTelemetry and counted in the Prometheus
// counter catalog_requests_total{op,outcome}.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/utils"
)

var (
	// ErrFilmNotFound is returned when the catalog has no film for an id.
	ErrFilmNotFound = errors.New("film not found in catalog")

	// ErrUpstream wraps transport failures, non-2xx responses and
	// undecodable payloads.
	ErrUpstream = errors.New("catalog upstream failure")
)

// maxPages bounds pagination so a misbehaving upstream cannot loop forever.
const maxPages = 50

var catalogReqs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Upstream film catalog requests by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(catalogReqs)
}

// Film is one entry of the upstream films collection.
type Film struct {
	EpisodeID   int       `json:"episode_id"`
	Title       string    `json:"title"`
	Director    string    `json:"director"`
	Producer    string    `json:"producer"`
	ReleaseDate string    `json:"release_date"`
	Created     time.Time `json:"created"`
	URL         string    `json:"url"`
}

// ID returns the episode id in the string form used as a movie id.
func (f Film) ID() string { return strconv.Itoa(f.EpisodeID) }

// Movie maps the film to a synthetic (not persisted) Movie whose id is the
// episode id and whose creation timestamp is the upstream one.
func (f Film) Movie() domain.Movie {
	return domain.Movie{
		ID:        f.ID(),
		Title:     f.Title,
		CreatedAt: f.Created,
	}
}

// Detail maps the film's descriptive fields to a MovieDetail.
func (f Film) Detail() domain.MovieDetail {
	return domain.MovieDetail{
		Title:       f.Title,
		ReleaseDate: f.ReleaseDate,
		Director:    f.Director,
		Producer:    f.Producer,
	}
}

type filmPage struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []Film  `json:"results"`
}

// Catalog is the read-only view of the upstream catalog used by services.
type Catalog interface {
	ListFilms(ctx context.Context) ([]Film, error)
	GetFilm(ctx context.Context, id string) (*Film, error)
}

// Client talks to a SWAPI-compatible films endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ListFilms returns every film in upstream order, following "next" links.
func (c *Client) ListFilms(ctx context.Context) ([]Film, error) {
	tr := otel.Tracer("catalog/Client")
	ctx, span := tr.Start(ctx, "ListFilms", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	films, err := c.listFilms(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		catalogReqs.WithLabelValues("list", "error").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.films", len(films)))
	catalogReqs.WithLabelValues("list", "ok").Inc()
	return films, nil
}

func (c *Client) listFilms(ctx context.Context) ([]Film, error) {
	films := []Film{}
	next := c.BaseURL
	for i := 0; next != "" && i < maxPages; i++ {
		var page filmPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, f := range page.Results {
			f.Title = norm.NFC.String(strings.TrimSpace(f.Title))
			films = append(films, f)
		}
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	if next != "" {
		return nil, fmt.Errorf("%w: more than %d pages", ErrUpstream, maxPages)
	}
	return films, nil
}

// GetFilm resolves the film whose episode id equals id. Ids that are not
// canonical positive integers ("4", not "04") never match and do not hit
// the network.
func (c *Client) GetFilm(ctx context.Context, id string) (*Film, error) {
	tr := otel.Tracer("catalog/Client")
	ctx, span := tr.Start(ctx, "GetFilm",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("film.id", id)),
	)
	defer span.End()

	episode, ok := utils.CanonicalPositiveInt(id)
	if !ok {
		catalogReqs.WithLabelValues("get", "not_found").Inc()
		return nil, ErrFilmNotFound
	}

	films, err := c.listFilms(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		catalogReqs.WithLabelValues("get", "error").Inc()
		return nil, err
	}
	for i := range films {
		if films[i].EpisodeID == episode {
			catalogReqs.WithLabelValues("get", "ok").Inc()
			return &films[i], nil
		}
	}
	catalogReqs.WithLabelValues("get", "not_found").Inc()
	return nil, ErrFilmNotFound
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d from %s", ErrUpstream, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

var _ Catalog = (*Client)(nil)
