// Package testutil provides testing utilities for the Places client and pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/places-scout/pkg/places"
)

// MockResponse defines the behavior for a mock Places endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// SearchRequest is a decoded places:searchText request body.
type SearchRequest struct {
	TextQuery    string          `json:"textQuery"`
	PageToken    string          `json:"pageToken,omitempty"`
	LocationBias json.RawMessage `json:"locationBias,omitempty"`
}

// MockPlaces is a configurable mock Places API server for testing.
//
// Search pages are registered per text query and chained with generated
// page tokens. Details are registered per place ID; unknown IDs get a 404.
type MockPlaces struct {
	server *httptest.Server
	mu     sync.RWMutex

	pages           map[string][]places.SearchPage
	searchResponses map[string]MockResponse
	details         map[string]MockResponse

	// Tracking
	RequestCount      int
	SearchRequests    []SearchRequest
	DetailRequests    []string
	LastRequestHeader http.Header
}

// NewMockPlaces creates a new mock Places server.
func NewMockPlaces() *MockPlaces {
	mock := &MockPlaces{
		pages:           make(map[string][]places.SearchPage),
		searchResponses: make(map[string]MockResponse),
		details:         make(map[string]MockResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /places:searchText", mock.handleSearch)
	mux.HandleFunc("GET /places/{id}", mock.handleDetail)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPlaces) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPlaces) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPlaces) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.SearchRequests = nil
	m.DetailRequests = nil
	m.LastRequestHeader = nil
}

// SetSearchPages registers the result pages for query. Page tokens linking
// the pages are generated.
func (m *MockPlaces) SetSearchPages(query string, pages ...[]places.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain := make([]places.SearchPage, len(pages))
	for i, candidates := range pages {
		chain[i] = places.SearchPage{Places: candidates}
		if i < len(pages)-1 {
			chain[i].NextPageToken = pageToken(query, i+1)
		}
	}
	m.pages[query] = chain
}

// SetSearchResponse overrides every search for query with resp.
func (m *MockPlaces) SetSearchResponse(query string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchResponses[query] = resp
}

// SetDetail registers a successful detail record.
func (m *MockPlaces) SetDetail(detail places.Detail) {
	body, _ := json.Marshal(detail)
	m.SetDetailResponse(detail.ID, NewHealthyResponse(string(body)))
}

// SetDetailResponse configures the detail response for placeID.
func (m *MockPlaces) SetDetailResponse(placeID string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[placeID] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPlaces) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetSearchRequests returns a copy of the decoded search requests.
func (m *MockPlaces) GetSearchRequests() []SearchRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SearchRequest(nil), m.SearchRequests...)
}

// GetDetailRequests returns the place IDs requested so far.
func (m *MockPlaces) GetDetailRequests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.DetailRequests...)
}

func (m *MockPlaces) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		write(w, NewErrorResponse(http.StatusBadRequest, "malformed body", "INVALID_ARGUMENT"))
		return
	}

	m.mu.Lock()
	m.SearchRequests = append(m.SearchRequests, req)
	resp, overridden := m.searchResponses[req.TextQuery]
	chain := m.pages[req.TextQuery]
	m.mu.Unlock()

	if overridden {
		write(w, resp)
		return
	}

	index := 0
	if req.PageToken != "" {
		index = pageIndex(req.TextQuery, req.PageToken)
		if index <= 0 || index >= len(chain) {
			write(w, NewErrorResponse(http.StatusBadRequest, "Invalid nextPageToken", "INVALID_REQUEST"))
			return
		}
	}

	if len(chain) == 0 {
		write(w, NewHealthyResponse(`{}`))
		return
	}

	body, _ := json.Marshal(chain[index])
	write(w, NewHealthyResponse(string(body)))
}

func (m *MockPlaces) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m.mu.Lock()
	m.DetailRequests = append(m.DetailRequests, id)
	resp, exists := m.details[id]
	m.mu.Unlock()

	if !exists {
		resp = NewErrorResponse(http.StatusNotFound, fmt.Sprintf("Place %s not found", id), "NOT_FOUND")
	}
	write(w, resp)
}

func write(w http.ResponseWriter, resp MockResponse) {
	// Add delay if specified
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func pageToken(query string, index int) string {
	return fmt.Sprintf("%s#%d", query, index)
}

func pageIndex(query, token string) int {
	var index int
	if _, err := fmt.Sscanf(strings.TrimPrefix(token, query+"#"), "%d", &index); err != nil {
		return -1
	}
	return index
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewErrorResponse creates an upstream error envelope response.
func NewErrorResponse(statusCode int, message, status string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body:       fmt.Sprintf(`{"error":{"code":%d,"message":%q,"status":%q}}`, statusCode, message, status),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, "Resource has been exhausted", "RESOURCE_EXHAUSTED")
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewErrorResponse(http.StatusInternalServerError, "Internal error encountered.", "INTERNAL")
}

// NewUnavailableResponse creates a 503 Service Unavailable response.
func NewUnavailableResponse() MockResponse {
	return NewErrorResponse(http.StatusServiceUnavailable, "The service is currently unavailable.", "UNAVAILABLE")
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Candidate builds a search candidate with a display name and optional rating.
func Candidate(id, name string, rating *float64) places.Candidate {
	return places.Candidate{
		ID:          id,
		DisplayName: &places.DisplayName{Text: name, LanguageCode: "en"},
		Rating:      rating,
	}
}
