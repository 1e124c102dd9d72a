package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/Sternrassler/places-scout/pkg/metrics"
	"github.com/Sternrassler/places-scout/pkg/pipeline"
	"github.com/redis/go-redis/v9"
)

// maxRequestBody bounds the size of a search request body.
const maxRequestBody = 1 << 20

// searchTimeout bounds one search request end to end.
const searchTimeout = 2 * time.Minute

var serverLogger = logging.NewLogger("server")

// searchRunner runs one search request.
type searchRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// errorResponse is the body of every non-200 API response.
type errorResponse struct {
	Error   string                `json:"error"`
	Details []pipeline.FieldError `json:"details,omitempty"`
}

// newMux wires the HTTP routes. redisClient may be nil.
func newMux(runner searchRunner, redisClient *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(redisClient))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/search", searchHandler(runner))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while the detail cache is unreachable.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				serverLogger.Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func searchHandler(runner searchRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req pipeline.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "Validation error",
				Details: []pipeline.FieldError{{Field: "body", Message: err.Error()}},
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), searchTimeout)
		defer cancel()

		resp, err := runner.Run(ctx, req)
		if err != nil {
			if fields, ok := pipeline.IsValidation(err); ok {
				writeJSON(w, http.StatusBadRequest, errorResponse{
					Error:   "Validation error",
					Details: fields,
				})
				return
			}

			serverLogger.Error().
				Err(err).
				Dur("duration", time.Since(start)).
				Msg("Search request failed")

			msg := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				msg = "search timed out: " + msg
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
			return
		}

		serverLogger.Info().
			Int("places", len(resp.Places)).
			Int("total_fetched", resp.TotalFetched).
			Dur("duration", time.Since(start)).
			Msg("Search request served")

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		serverLogger.Error().Err(err).Msg("Failed to write response")
	}
}
