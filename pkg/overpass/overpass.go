// Package overpass queries the Overpass API for OpenStreetMap road and
// parking features around a coordinate.
package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/raumwerk/standort-cli/internal/resilience"
)

// DefaultBaseURL is the Swiss Overpass instance.
const DefaultBaseURL = "https://overpass.osm.ch/api/interpreter"

// serverTimeoutSecs is the [timeout:] directive sent with every query.
const serverTimeoutSecs = 25

// Client resolves motorway ramps and parking facilities from OSM data.
type Client interface {
	// NearestMotorwayRamp returns the closest motorway entry point within
	// radiusM meters, or nil when none exists inside the radius.
	NearestMotorwayRamp(ctx context.Context, lat, lon float64, radiusM int) (*Ramp, error)

	// NearestParking returns the closest amenity=parking feature within
	// radiusM meters, or nil when none exists inside the radius.
	NearestParking(ctx context.Context, lat, lon float64, radiusM int) (*Facility, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at a different Overpass instance.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry overrides the retry policy for failed queries.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a new Overpass Client with the given options.
func NewClient(opts ...Option) Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("overpass", "query")

	c := &client{
		httpClient: &http.Client{Timeout: (serverTimeoutSecs + 10) * time.Second},
		baseURL:    DefaultBaseURL,
		limiter:    rate.NewLimiter(1, 1), // public instances throttle aggressively
		retry:      retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is the JSON envelope returned by the Overpass API.
type response struct {
	Elements []element `json:"elements"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// element is a single OSM node, way, or relation. Ways carry Nodes from
// "out body" and Geometry from "out geom"; relations carry Center from
// "out center".
type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Nodes    []int64           `json:"nodes"`
	Tags     map[string]string `json:"tags"`
	Geometry []latLon          `json:"geometry"`
	Center   *latLon           `json:"center"`
}

func (c *client) query(ctx context.Context, ql string) (*response, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*response, error) {
		return c.queryOnce(ctx, ql)
	})
}

func (c *client) queryOnce(ctx context.Context, ql string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit")
	}

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("overpass: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read body")
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}
	return &out, nil
}
