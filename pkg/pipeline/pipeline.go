// Package pipeline validates a search request, aggregates matching
// candidates and enriches them into the response.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/places-scout/pkg/aggregate"
	"github.com/Sternrassler/places-scout/pkg/enrich"
	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/Sternrassler/places-scout/pkg/places"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pipeline runs.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_pipeline_runs_total",
		Help: "Total pipeline runs by outcome (ok, empty, invalid, failed)",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "places_pipeline_duration_seconds",
		Help:    "Pipeline run duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

const (
	outcomeOK      = "ok"
	outcomeEmpty   = "empty"
	outcomeInvalid = "invalid"
	outcomeFailed  = "failed"
)

// NoResultsMessage is set on a response without places.
const NoResultsMessage = "No places found matching the criteria"

// Response is the result of a pipeline run.
type Response struct {
	Places       []places.Detail `json:"places"`
	TotalFetched int             `json:"totalFetched"`
	Filtered     int             `json:"filtered"`
	Message      string          `json:"message,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	Enrich enrich.Config
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		Enrich: enrich.DefaultConfig(),
	}
}

// Pipeline sequences aggregation and enrichment for one request at a time.
// It is safe for concurrent use; runs share no state.
type Pipeline struct {
	aggregator *aggregate.Aggregator
	enricher   *enrich.Enricher
	logger     zerolog.Logger
}

// New creates a Pipeline over a search and a detail backend.
func New(searcher aggregate.Searcher, fetcher enrich.DetailFetcher, opts Options) *Pipeline {
	return &Pipeline{
		aggregator: aggregate.New(searcher, logging.NewLogger("aggregator")),
		enricher:   enrich.New(fetcher, opts.Enrich),
		logger:     logging.NewLogger("pipeline"),
	}
}

// Run executes one request. It returns a *ValidationError for a bad request
// and a wrapped error when aggregation cannot produce a candidate set. A
// keyword that fails after some of its pages came back keeps those pages.
// Enrichment failures only degrade individual records.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()

	if err := req.Validate(); err != nil {
		runsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, err
	}

	params := aggregate.Params{
		Keywords:  req.Keywords,
		Bias:      req.Bias(),
		Limit:     req.EffectiveLimit(),
		Threshold: req.EffectiveThreshold(),
	}

	p.logger.Info().
		Int("keywords", len(params.Keywords)).
		Stringer("bias", params.Bias).
		Int("limit", params.Limit).
		Float64("threshold", params.Threshold).
		Msg("Starting search")

	agg, err := p.aggregator.Collect(ctx, params)
	if err != nil {
		runsTotal.WithLabelValues(outcomeFailed).Inc()
		p.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Search failed")
		return nil, fmt.Errorf("collect candidates: %w", err)
	}

	if len(agg.Candidates) == 0 {
		runsTotal.WithLabelValues(outcomeEmpty).Inc()
		p.logger.Info().
			Int("total_fetched", agg.TotalFetched).
			Msg("No candidates matched")
		return &Response{
			Places:       []places.Detail{},
			TotalFetched: agg.TotalFetched,
			Filtered:     0,
			Message:      NoResultsMessage,
		}, nil
	}

	if agg.DeadlineReached {
		// Enrichment still runs so every collected candidate is returned,
		// degraded where the deadline leaves no time to fetch it.
		p.logger.Warn().
			Int("candidates", len(agg.Candidates)).
			Msg("Deadline reached during collection")
	}

	enriched := p.enricher.Enrich(ctx, agg.Candidates)

	runsTotal.WithLabelValues(outcomeOK).Inc()
	p.logger.Info().
		Int("places", len(enriched.Details)).
		Int("degraded", enriched.Degraded).
		Int("total_fetched", agg.TotalFetched).
		Int("failed_keywords", len(agg.KeywordErrors)).
		Dur("duration", time.Since(start)).
		Msg("Search complete")

	return &Response{
		Places:       enriched.Details,
		TotalFetched: agg.TotalFetched,
		Filtered:     agg.FilteredCount,
	}, nil
}

// IsValidation reports whether err is a request validation failure and
// returns its field errors.
func IsValidation(err error) ([]FieldError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	return nil, false
}
