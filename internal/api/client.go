package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/colthorp/proximity-cli/internal/config"
	"github.com/colthorp/proximity-cli/internal/core"
)

// ErrMissingAPIKey is returned when a client is built without a provider key.
var ErrMissingAPIKey = eris.New("api: provider api key not configured")

// HTTPError is returned when the provider answers with a non-2xx HTTP status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Body)
}

// Client is the HTTP wrapper around the Google Maps web services.
type Client struct {
	apiKey      string
	baseURL     string
	language    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimiter overrides the outbound request limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMaxAttempts sets the total number of attempts per request.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the base wait between retries; it doubles on each attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithLanguage sets the language parameter sent with every request.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// NewClient creates a new API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: core.APIBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(10), 1),
		maxAttempts: 3,
		backoff:     time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewClientFromConfig builds a client from the provider section of the configuration.
// Extra options are applied after the configured ones.
func NewClientFromConfig(cfg config.ProviderConfig, opts ...Option) (*Client, error) {
	base := []Option{
		WithMaxAttempts(cfg.MaxAttempts),
		WithLanguage(cfg.Language),
	}
	if cfg.BaseURL != "" {
		base = append(base, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.RateLimit > 0 {
		base = append(base, WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)))
	}
	return NewClient(cfg.APIKey, append(base, opts...)...)
}

// NewTransportFromConfig returns a Client when a provider key is configured.
// Without one it returns a transport that fails every call with
// ErrMissingAPIKey, so answers already held in the stores remain usable.
func NewTransportFromConfig(cfg config.ProviderConfig, opts ...Option) (Transport, error) {
	if cfg.APIKey == "" {
		zap.L().Debug("api: no provider key configured, provider calls disabled")
		return offlineTransport{}, nil
	}
	c, err := NewClientFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type offlineTransport struct{}

func (offlineTransport) Geocode(context.Context, string) (*GeocodeResponse, error) {
	return nil, ErrMissingAPIKey
}

func (offlineTransport) NearbySearch(context.Context, NearbyRequest) (*PlaceSearchResponse, error) {
	return nil, ErrMissingAPIKey
}

func (offlineTransport) DistanceMatrix(context.Context, DistanceRequest) (*DistanceMatrixResponse, error) {
	return nil, ErrMissingAPIKey
}

// Geocode resolves an address to candidate locations.
func (c *Client) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	var out GeocodeResponse
	if err := c.get(ctx, EndpointGeocode, url.Values{"address": {address}}, &out); err != nil {
		return nil, err
	}
	zap.L().Debug("api: geocode response",
		zap.String("status", out.Status),
		zap.Int("candidates", len(out.Results)),
	)
	return &out, nil
}

// NearbySearch fetches one page of a text search around a centre.
func (c *Client) NearbySearch(ctx context.Context, req NearbyRequest) (*PlaceSearchResponse, error) {
	params := url.Values{}
	if req.PageToken != "" {
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("query", req.Query)
		params.Set("location", core.FormatLatLng(req.Center.Lat, req.Center.Lng))
		if req.RadiusMeters > 0 {
			params.Set("radius", strconv.Itoa(req.RadiusMeters))
		}
		if req.Type != "" {
			params.Set("type", req.Type)
		}
	}

	var out PlaceSearchResponse
	if err := c.get(ctx, EndpointTextSearch, params, &out); err != nil {
		return nil, err
	}

	cursorInfo := "no more pages"
	if out.NextPageToken != "" {
		cursorInfo = "has next page"
	}
	zap.L().Debug("api: text search response",
		zap.String("status", out.Status),
		zap.Int("results", len(out.Results)),
		zap.String("cursor", cursorInfo),
	)
	return &out, nil
}

// DistanceMatrix fetches travel distances between every origin and destination.
func (c *Client) DistanceMatrix(ctx context.Context, req DistanceRequest) (*DistanceMatrixResponse, error) {
	params := url.Values{
		"origins":      {joinLocations(req.Origins)},
		"destinations": {joinLocations(req.Destinations)},
	}
	if req.Mode != "" {
		params.Set("mode", req.Mode)
	}

	var out DistanceMatrixResponse
	if err := c.get(ctx, EndpointDistanceMatrix, params, &out); err != nil {
		return nil, err
	}
	zap.L().Debug("api: distance matrix response",
		zap.String("status", out.Status),
		zap.Int("rows", len(out.Rows)),
	)
	return &out, nil
}

func joinLocations(locs []Location) string {
	parts := make([]string, len(locs))
	for i, l := range locs {
		parts[i] = core.FormatLatLng(l.Lat, l.Lng)
	}
	return strings.Join(parts, "|")
}

// get performs a GET request and decodes the JSON payload into out.
// Retries automatically on HTTP 5xx or 429 responses and connection errors
// with exponential back-off.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	logParams := params.Encode()

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if c.language != "" {
		q.Set("language", c.language)
	}
	q.Set("key", c.apiKey)
	urlStr := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())

	log := zap.L().With(zap.String("endpoint", endpoint))
	log.Debug("api: GET", zap.String("params", logParams))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "api: rate limit")
		}

		body, retryAfter, err := c.do(ctx, urlStr)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return eris.Wrapf(err, "api: parse %s response", endpoint)
			}
			return nil
		}

		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return err
		}
		if attempt == c.maxAttempts {
			break
		}

		wait := c.backoff * time.Duration(1<<(attempt-1))
		if retryAfter >= 0 {
			wait = retryAfter
		}
		log.Warn("api: request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrap(ctx.Err(), "api: retry wait")
		case <-timer.C:
		}
	}

	return lastErr
}

// do issues one request. retryAfter is negative unless the provider asked for a specific wait.
func (c *Client) do(ctx context.Context, urlStr string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, -1, eris.Wrap(err, "api: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", core.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, -1, &connError{err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, eris.Wrap(err, "api: read response body")
	}

	if resp.StatusCode >= 400 {
		retryAfter := time.Duration(-1)
		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					retryAfter = time.Duration(secs) * time.Second
				}
			}
		}
		return nil, retryAfter, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, -1, nil
}

// connError marks a failure to reach the provider at all.
type connError struct {
	err error
}

func (e *connError) Error() string { return "api: request failed: " + e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	var ce *connError
	return errors.As(err, &ce)
}
