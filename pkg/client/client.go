// Package client provides the Places API HTTP client with classified errors,
// per-call retry policies, and an optional detail cache.
package client

import (
	"bytes"
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

	"github.com/Sternrassler/places-scout/pkg/cache"
	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/Sternrassler/places-scout/pkg/places"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Places API requests.
var (
	placesRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_requests_total",
		Help: "Total Places API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	placesRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "places_request_duration_seconds",
		Help:    "Places API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	placesErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_errors_total",
		Help: "Total Places API errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the Places API (New) base URL.
const DefaultBaseURL = "https://places.googleapis.com/v1"

// Endpoint labels used in metrics and logs.
const (
	endpointSearchText   = "searchText"
	endpointPlaceDetails = "placeDetails"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// SearchFieldMask selects the candidate fields returned by text search.
var SearchFieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.location",
	"places.rating",
	"places.userRatingCount",
	"nextPageToken",
}, ",")

// DetailFieldMask selects the fields returned by a place details lookup.
var DetailFieldMask = strings.Join([]string{
	"id",
	"name",
	"displayName",
	"formattedAddress",
	"shortFormattedAddress",
	"location",
	"rating",
	"userRatingCount",
	"websiteUri",
	"internationalPhoneNumber",
	"nationalPhoneNumber",
	"regularOpeningHours",
	"currentOpeningHours",
	"types",
	"businessStatus",
	"plusCode",
	"photos",
	"reviews",
	"googleMapsUri",
}, ",")

// Client talks to the Places API.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent as X-Goog-Api-Key (REQUIRED).
	APIKey string

	// BaseURL of the Places API; DefaultBaseURL when empty.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry policies per call site.
	SearchPolicy       RetryPolicy
	ContinuationPolicy RetryPolicy
	DetailPolicy       RetryPolicy

	// Cache optionally serves detail lookups. Nil disables caching.
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey, userAgent string) Config {
	return Config{
		APIKey:             apiKey,
		BaseURL:            DefaultBaseURL,
		UserAgent:          userAgent,
		Timeout:            30 * time.Second,
		SearchPolicy:       FirstPagePolicy(),
		ContinuationPolicy: ContinuationPolicy(),
		DetailPolicy:       DefaultRetryPolicy(),
	}
}

// New creates a new Places API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: logging.NewLogger("places-client"),
	}, nil
}

// searchTextRequest is the body of a places:searchText call.
type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	PageToken    string        `json:"pageToken,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle biasCircle `json:"circle"`
}

type biasCircle struct {
	Center biasCenter `json:"center"`
	Radius float64    `json:"radius"`
}

type biasCenter struct {
	AddressLines []string `json:"addressLines,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// newLocationBias converts a bias to its wire form. A coordinate takes
// precedence over free text.
func newLocationBias(b *places.LocationBias) *locationBias {
	switch {
	case b == nil:
		return nil
	case b.LatLng != nil:
		lat, lng := b.LatLng.Latitude, b.LatLng.Longitude
		return &locationBias{Circle: biasCircle{
			Center: biasCenter{Latitude: &lat, Longitude: &lng},
			Radius: places.BiasRadiusMeters,
		}}
	case b.Text != "":
		return &locationBias{Circle: biasCircle{
			Center: biasCenter{AddressLines: []string{b.Text}},
			Radius: places.BiasRadiusMeters,
		}}
	default:
		return nil
	}
}

// errorEnvelope is the upstream error body.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// SearchText fetches one page of text search results. The location bias is
// only sent with the first page; continuation requests carry the page token
// alone and use the continuation retry policy.
func (c *Client) SearchText(ctx context.Context, query string, bias *places.LocationBias, pageToken string) (*places.SearchPage, error) {
	body := searchTextRequest{TextQuery: query}
	policy := c.config.SearchPolicy

	if pageToken != "" {
		body.PageToken = pageToken
		policy = c.config.ContinuationPolicy
	} else {
		body.LocationBias = newLocationBias(bias)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	return Retry(ctx, policy, func(ctx context.Context) (*places.SearchPage, error) {
		data, err := c.do(ctx, http.MethodPost, endpointSearchText, c.config.BaseURL+"/places:searchText", SearchFieldMask, payload)
		if err != nil {
			return nil, err
		}

		var page places.SearchPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		return &page, nil
	})
}

// GetPlaceDetails fetches the full record of one place. Failures are
// returned as *DetailError.
func (c *Client) GetPlaceDetails(ctx context.Context, placeID string) (*places.Detail, error) {
	cacheKey := cache.DetailKey(placeID, DetailFieldMask)

	if c.cache != nil {
		detail, err := c.cache.GetDetail(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("place_id", placeID).Msg("Detail served from cache")
			return detail, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("place_id", placeID).Msg("Cache get error")
		}
	}

	endpoint := c.config.BaseURL + "/places/" + url.PathEscape(placeID)
	detail, err := Retry(ctx, c.config.DetailPolicy, func(ctx context.Context) (*places.Detail, error) {
		data, err := c.do(ctx, http.MethodGet, endpointPlaceDetails, endpoint, DetailFieldMask, nil)
		if err != nil {
			return nil, err
		}

		var d places.Detail
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode place details: %w", err)
		}
		return &d, nil
	})
	if err != nil {
		return nil, &DetailError{PlaceID: placeID, Err: err}
	}

	if c.cache != nil {
		if err := c.cache.SetDetail(ctx, cacheKey, detail); err != nil {
			c.logger.Warn().Err(err).Str("place_id", placeID).Msg("Failed to cache place details")
		}
	}

	return detail, nil
}

// do performs one HTTP attempt and returns the response body. Non-success
// responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, endpoint, rawURL, fieldMask string, payload []byte) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		placesRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.config.APIKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing Places API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		placesErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		placesRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	placesRequestsTotal.WithLabelValues(endpoint, status).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		var envelope errorEnvelope
		_ = json.Unmarshal(raw, &envelope)

		apiErr := newAPIError(resp.StatusCode, envelope.Error.Message, envelope.Error.Status)
		placesErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Str("message", apiErr.Message).
			Msg("Places API request error")

		return nil, apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		placesErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	return data, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
