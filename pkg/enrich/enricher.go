package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/Sternrassler/places-scout/pkg/places"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for detail enrichment.
var (
	detailOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_enrich_details_total",
		Help: "Total enriched records by outcome (ok, degraded)",
	}, []string{"outcome"})

	detailsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "places_enrich_in_flight",
		Help: "Detail fetches currently in flight",
	})

	enrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "places_enrich_duration_seconds",
		Help:    "Duration of a whole enrichment batch in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
)

// Config holds enrichment configuration.
type Config struct {
	// MaxConcurrency is the maximum number of detail fetches in flight.
	MaxConcurrency int

	// Timeout bounds each detail fetch. Zero means only the caller's
	// context applies.
	Timeout time.Duration
}

// DefaultConfig returns the default enrichment configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
	}
}

// DetailFetcher fetches the full record of one place.
type DetailFetcher interface {
	GetPlaceDetails(ctx context.Context, placeID string) (*places.Detail, error)
}

// Result is the outcome of an enrichment batch.
type Result struct {
	// Details has one entry per input candidate, in input order.
	Details []places.Detail

	// Degraded counts entries built from candidate fields after a failed fetch.
	Degraded int
}

// Enricher runs detail fetches through a fixed-size worker pool.
type Enricher struct {
	fetcher DetailFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates an Enricher.
func New(fetcher DetailFetcher, config Config) *Enricher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &Enricher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("enricher"),
	}
}

// job is one candidate tagged with its output slot.
type job struct {
	index     int
	candidate places.Candidate
}

// Enrich fetches details for every candidate. It always returns a result of
// the same length as candidates. Once ctx is done the remaining items are
// degraded without being fetched.
func (e *Enricher) Enrich(ctx context.Context, candidates []places.Candidate) *Result {
	start := time.Now()
	defer func() {
		enrichDuration.Observe(time.Since(start).Seconds())
	}()

	result := &Result{Details: make([]places.Detail, len(candidates))}
	if len(candidates) == 0 {
		return result
	}

	workers := e.config.MaxConcurrency
	if workers > len(candidates) {
		workers = len(candidates)
	}

	e.logger.Info().
		Int("candidates", len(candidates)).
		Int("workers", workers).
		Msg("Starting detail enrichment")

	queue := make(chan job, len(candidates))
	for i, c := range candidates {
		queue <- job{index: i, candidate: c}
	}
	close(queue)

	var degraded atomic.Int64

	// Workers never return an error; the group only bounds their lifetime.
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			e.worker(ctx, workerID, queue, result.Details, &degraded)
			return nil
		})
	}
	_ = g.Wait()

	result.Degraded = int(degraded.Load())

	e.logger.Info().
		Int("details", len(result.Details)).
		Int("degraded", result.Degraded).
		Dur("duration", time.Since(start)).
		Msg("Detail enrichment complete")

	return result
}

// worker drains the queue, writing each outcome into its own slot.
func (e *Enricher) worker(ctx context.Context, workerID int, queue <-chan job, slots []places.Detail, degraded *atomic.Int64) {
	processed := 0

	for j := range queue {
		detail, ok := e.fetch(ctx, j.candidate)
		if !ok {
			degraded.Add(1)
		}
		slots[j.index] = detail
		processed++
	}

	e.logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
}

// fetch returns the upstream detail for c, or the degraded record and false.
func (e *Enricher) fetch(ctx context.Context, c places.Candidate) (places.Detail, bool) {
	if err := ctx.Err(); err != nil {
		e.logger.Debug().
			Str("place_id", c.ID).
			Msg("Context done, degrading without fetch")
		detailOutcomesTotal.WithLabelValues(outcomeDegraded).Inc()
		return places.FromCandidate(c), false
	}

	itemCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	detailsInFlight.Inc()
	detail, err := e.fetcher.GetPlaceDetails(itemCtx, c.ID)
	detailsInFlight.Dec()

	if err != nil || detail == nil {
		e.logger.Warn().
			Err(err).
			Str("place_id", c.ID).
			Str("name", c.Name()).
			Msg("Detail fetch failed, using search fields")
		detailOutcomesTotal.WithLabelValues(outcomeDegraded).Inc()
		return places.FromCandidate(c), false
	}

	detailOutcomesTotal.WithLabelValues(outcomeOK).Inc()
	return *detail, true
}
