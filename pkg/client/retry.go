package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	placesRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	placesRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "places_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 10, 30},
	}, []string{"error_class"})

	placesRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy holds the backoff configuration for one retried call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// Jitter randomizes each sleep by ±Jitter (0.2 = ±20%). Zero disables it.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used for detail lookups.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// FirstPagePolicy returns the policy for the first page of a text search.
func FirstPagePolicy() RetryPolicy {
	return DefaultRetryPolicy()
}

// ContinuationPolicy returns the policy for continuation pages. Fresh page
// tokens need a moment upstream before they are accepted, so it waits longer
// and tries more often.
func ContinuationPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Attempts returns the total number of attempts the policy allows.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// nextDelay grows delay geometrically, capped at MaxDelay.
func (p RetryPolicy) nextDelay(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * p.Multiplier)
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}

// sleepFor applies jitter to delay.
func (p RetryPolicy) sleepFor(delay time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return delay
	}
	return time.Duration(float64(delay) * (1 - p.Jitter + rand.Float64()*2*p.Jitter))
}

// sleep waits for d or until ctx is done. Tests replace it to avoid real waits.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry executes op with exponential backoff. Only transient upstream
// failures are retried; anything else is returned unchanged on first
// occurrence. When every attempt fails the last error is returned wrapped
// with ErrRetryExhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.Attempts()
	delay := policy.InitialDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return result, nil
		}

		lastErr = err
		errorClass := classOf(err)

		if !IsRetryable(err) {
			return zero, err
		}

		// If this was the last attempt, don't wait
		if attempt >= attempts {
			break
		}

		placesRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		wait := policy.sleepFor(delay)
		placesRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(wait.Seconds())

		log.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Int("max_retries", policy.MaxRetries).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, wait); err != nil {
			log.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return zero, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		delay = policy.nextDelay(delay)
	}

	errorClass := classOf(lastErr)
	placesRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	log.Warn().
		Str("error_class", string(errorClass)).
		Int("attempts", attempts).
		Msg("Retry attempts exhausted")

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
