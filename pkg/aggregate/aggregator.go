// Package aggregate collects search candidates across keywords and pages
// into a deduplicated, threshold-filtered and size-bounded set.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/places-scout/pkg/places"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for candidate aggregation.
var (
	candidatesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_aggregate_candidates_fetched_total",
		Help: "Total candidates inspected across all search pages",
	})

	candidatesAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_aggregate_candidates_accepted_total",
		Help: "Total candidates admitted to a candidate set",
	})

	searchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_aggregate_pages_total",
		Help: "Total search pages fetched during aggregation",
	})

	keywordFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_aggregate_keyword_failures_total",
		Help: "Total keywords abandoned after a search failure",
	})
)

var (
	// ErrNoKeywords is returned when Collect is called without keywords.
	ErrNoKeywords = errors.New("no keywords")

	// ErrAllKeywordsFailed is returned when every keyword failed before a
	// single search page came back.
	ErrAllKeywordsFailed = errors.New("all keyword searches failed")
)

// Searcher fetches one page of text search results.
type Searcher interface {
	SearchText(ctx context.Context, query string, bias *places.LocationBias, pageToken string) (*places.SearchPage, error)
}

// Params describes one aggregation run.
type Params struct {
	Keywords []string

	// Bias is sent with the first page of every keyword. Nil disables it.
	Bias *places.LocationBias

	// Limit caps the number of collected candidates. Must be positive.
	Limit int

	// Threshold is the exclusive upper bound on a candidate's rating.
	Threshold float64
}

// KeywordError records a keyword whose search was abandoned.
type KeywordError struct {
	Keyword string
	Err     error
}

// Error implements the error interface.
func (e *KeywordError) Error() string {
	return fmt.Sprintf("keyword %q: %v", e.Keyword, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *KeywordError) Unwrap() error {
	return e.Err
}

// Result is the outcome of an aggregation run.
type Result struct {
	// Candidates in first-seen order, at most Limit of them.
	Candidates []places.Candidate

	// TotalFetched counts every candidate inspected, duplicates and
	// rejections included.
	TotalFetched int

	// FilteredCount is len(Candidates).
	FilteredCount int

	// KeywordErrors lists keywords that failed softly.
	KeywordErrors []*KeywordError

	// DeadlineReached is set when ctx's deadline ended collection early.
	DeadlineReached bool
}

// Aggregator runs sequential multi-keyword pagination against a Searcher.
type Aggregator struct {
	searcher Searcher
	logger   zerolog.Logger
}

// New creates an Aggregator.
func New(searcher Searcher, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		searcher: searcher,
		logger:   logger,
	}
}

// run holds the state of one Collect call.
type run struct {
	params       Params
	set          *CandidateSet
	totalFetched int
	pagesFetched int
}

func (r *run) full() bool {
	return r.set.Len() >= r.params.Limit
}

// Collect walks every keyword and its pages in order. It stops as soon as the
// set reaches the limit, without finishing the current page.
//
// A failing keyword is recorded in Result.KeywordErrors and skipped; pages it
// returned before failing stay in the set. Collect fails when ctx is
// cancelled, or when every keyword failed without a single page coming back.
// An expired ctx deadline ends collection with what was gathered so far and
// sets Result.DeadlineReached; it is fatal only if no page was fetched.
func (a *Aggregator) Collect(ctx context.Context, params Params) (*Result, error) {
	if len(params.Keywords) == 0 {
		return nil, ErrNoKeywords
	}
	if params.Limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", params.Limit)
	}

	r := &run{
		params: params,
		set:    NewCandidateSet(params.Limit),
	}

	var (
		keywordErrors   []*KeywordError
		deadlineReached bool
	)

	for _, keyword := range params.Keywords {
		if err := a.collectKeyword(ctx, r, keyword); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				if !errors.Is(ctxErr, context.DeadlineExceeded) || r.pagesFetched == 0 {
					return nil, fmt.Errorf("aggregation cancelled during keyword %q: %w", keyword, ctxErr)
				}

				a.logger.Warn().
					Str("keyword", keyword).
					Int("collected", r.set.Len()).
					Int("pages", r.pagesFetched).
					Msg("Deadline reached, keeping candidates collected so far")

				keywordErrors = append(keywordErrors, &KeywordError{Keyword: keyword, Err: ctxErr})
				deadlineReached = true
				break
			}

			keywordFailuresTotal.Inc()
			a.logger.Warn().
				Err(err).
				Str("keyword", keyword).
				Int("collected", r.set.Len()).
				Msg("Keyword search failed, continuing with next keyword")

			keywordErrors = append(keywordErrors, &KeywordError{Keyword: keyword, Err: err})
		}

		if r.full() {
			a.logger.Debug().
				Str("keyword", keyword).
				Int("limit", params.Limit).
				Msg("Candidate limit reached")
			break
		}
	}

	if r.pagesFetched == 0 && len(keywordErrors) > 0 {
		errs := make([]error, 0, len(keywordErrors)+1)
		errs = append(errs, ErrAllKeywordsFailed)
		for _, kerr := range keywordErrors {
			errs = append(errs, kerr)
		}
		return nil, errors.Join(errs...)
	}

	result := &Result{
		Candidates:      r.set.Candidates(params.Limit),
		TotalFetched:    r.totalFetched,
		KeywordErrors:   keywordErrors,
		DeadlineReached: deadlineReached,
	}
	result.FilteredCount = len(result.Candidates)

	a.logger.Info().
		Int("keywords", len(params.Keywords)).
		Int("total_fetched", result.TotalFetched).
		Int("filtered", result.FilteredCount).
		Int("failed_keywords", len(keywordErrors)).
		Bool("deadline_reached", deadlineReached).
		Msg("Aggregation completed")

	return result, nil
}

// collectKeyword pages through one keyword until the pages run out or the
// set is full. Candidates gathered before an error stay in the set.
func (a *Aggregator) collectKeyword(ctx context.Context, r *run, keyword string) error {
	pageToken := ""

	for pageNum := 1; ; pageNum++ {
		page, err := a.searcher.SearchText(ctx, keyword, r.params.Bias, pageToken)
		if err != nil {
			return fmt.Errorf("page %d: %w", pageNum, err)
		}
		searchPagesTotal.Inc()
		r.pagesFetched++

		a.logger.Debug().
			Str("keyword", keyword).
			Int("page", pageNum).
			Int("results", len(page.Places)).
			Bool("has_more", page.HasMore()).
			Msg("Search page fetched")

		if a.consume(r, page.Places) {
			return nil
		}

		if !page.HasMore() {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

// consume applies the dedup and threshold filter to one page. It reports
// true once the set is full; the rest of the page is then left uncounted.
func (a *Aggregator) consume(r *run, candidates []places.Candidate) bool {
	for _, c := range candidates {
		r.totalFetched++
		candidatesFetchedTotal.Inc()

		if r.set.Has(c.ID) || !c.RatedBelow(r.params.Threshold) {
			continue
		}

		r.set.Add(c)
		candidatesAcceptedTotal.Inc()

		a.logger.Debug().
			Str("place_id", c.ID).
			Str("name", c.Name()).
			Float64("rating", *c.Rating).
			Msg("Candidate accepted")

		if r.full() {
			return true
		}
	}
	return r.full()
}
