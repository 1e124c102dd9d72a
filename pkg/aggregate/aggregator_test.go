package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/places-scout/pkg/client"
	"github.com/Sternrassler/places-scout/pkg/places"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchCall is one recorded SearchText invocation.
type searchCall struct {
	query     string
	pageToken string
	bias      *places.LocationBias
}

// fakeSearcher serves scripted pages per keyword. failAt maps a keyword to
// the zero-based page index that fails.
type fakeSearcher struct {
	mu     sync.Mutex
	pages  map[string][][]places.Candidate
	failAt map[string]int
	err    error
	onCall func(call searchCall)
	calls  []searchCall
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		pages:  make(map[string][][]places.Candidate),
		failAt: make(map[string]int),
		err:    fmt.Errorf("%w after 4 attempts: upstream", client.ErrRetryExhausted),
	}
}

func (f *fakeSearcher) SearchText(ctx context.Context, query string, bias *places.LocationBias, pageToken string) (*places.SearchPage, error) {
	call := searchCall{query: query, pageToken: pageToken, bias: bias}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := 0
	if pageToken != "" {
		index, _ = strconv.Atoi(pageToken)
	}

	if at, ok := f.failAt[query]; ok && at == index {
		return nil, f.err
	}

	chain := f.pages[query]
	if index >= len(chain) {
		return &places.SearchPage{}, nil
	}

	page := &places.SearchPage{Places: chain[index]}
	if index+1 < len(chain) {
		page.NextPageToken = strconv.Itoa(index + 1)
	}
	return page, nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func rated(id string, rating float64) places.Candidate {
	return places.Candidate{ID: id, DisplayName: &places.DisplayName{Text: "Place " + id}, Rating: &rating}
}

func unrated(id string) places.Candidate {
	return places.Candidate{ID: id}
}

func newTestAggregator(s Searcher) *Aggregator {
	return New(s, zerolog.Nop())
}

func TestCollect_DinerExample(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{
		{rated("A", 2.1), rated("B", 4.0), rated("C", 1.5)},
	}

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner"},
		Limit:     2,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, ids(result.Candidates))
	assert.Equal(t, 3, result.TotalFetched)
	assert.Equal(t, 2, result.FilteredCount)
	assert.Empty(t, result.KeywordErrors)
}

func TestCollect_DeduplicatesAcrossKeywords(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{{rated("A", 1.0), rated("B", 2.0)}}
	searcher.pages["cafe"] = [][]places.Candidate{{rated("B", 2.0), rated("A", 1.0), rated("C", 2.5)}}

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner", "cafe"},
		Limit:     10,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, ids(result.Candidates))
	assert.Equal(t, 5, result.TotalFetched, "duplicates are still counted as fetched")
	assert.Equal(t, 3, result.FilteredCount)
}

func TestCollect_ThresholdIsExclusive(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		page      []places.Candidate
		expected  []string
	}{
		{
			name:      "equal rating excluded",
			threshold: 3.0,
			page:      []places.Candidate{rated("A", 3.0), rated("B", 2.99)},
			expected:  []string{"B"},
		},
		{
			name:      "missing rating never matches",
			threshold: 5.0,
			page:      []places.Candidate{unrated("A"), rated("B", 4.9)},
			expected:  []string{"B"},
		},
		{
			name:      "zero threshold matches nothing",
			threshold: 0,
			page:      []places.Candidate{rated("A", 0), unrated("B")},
			expected:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := newFakeSearcher()
			searcher.pages["q"] = [][]places.Candidate{tt.page}

			result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
				Keywords:  []string{"q"},
				Limit:     10,
				Threshold: tt.threshold,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.expected, ids(result.Candidates))
			assert.Equal(t, len(tt.page), result.TotalFetched)
			for _, c := range result.Candidates {
				require.NotNil(t, c.Rating)
				assert.Less(t, *c.Rating, tt.threshold)
			}
		})
	}
}

func TestCollect_FollowsPageTokens(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{
		{rated("A", 1.0)},
		{rated("B", 1.0)},
		{rated("C", 1.0)},
	}
	bias := places.TextBias("Springfield")

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner"},
		Bias:      bias,
		Limit:     10,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, ids(result.Candidates))
	require.Len(t, searcher.calls, 3)
	assert.Equal(t, "", searcher.calls[0].pageToken)
	assert.Equal(t, "1", searcher.calls[1].pageToken)
	assert.Equal(t, "2", searcher.calls[2].pageToken)
	for _, call := range searcher.calls {
		assert.Same(t, bias, call.bias)
	}
}

func TestCollect_LimitStopsMidPage(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{
		{rated("A", 1.0), rated("B", 1.0), rated("C", 1.0), rated("D", 1.0)},
		{rated("E", 1.0)},
	}
	searcher.pages["cafe"] = [][]places.Candidate{{rated("F", 1.0)}}

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner", "cafe"},
		Limit:     2,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(result.Candidates))
	assert.Equal(t, 2, result.TotalFetched, "candidates after the limit are not counted")
	assert.Equal(t, 1, searcher.callCount(), "no further pages or keywords after the limit")
}

func TestCollect_LimitAtPageBoundary(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{
		{rated("A", 1.0), rated("B", 1.0)},
		{rated("C", 1.0)},
	}

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner"},
		Limit:     2,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Len(t, result.Candidates, 2)
	assert.Equal(t, 1, searcher.callCount())
}

func TestCollect_KeywordIsolation(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["bad"] = [][]places.Candidate{{rated("X", 1.0)}, {rated("Y", 1.0)}}
	searcher.failAt["bad"] = 1
	searcher.pages["good"] = [][]places.Candidate{{rated("A", 1.0)}}

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"bad", "good"},
		Limit:     10,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "A"}, ids(result.Candidates), "pages before the failure are kept")
	require.Len(t, result.KeywordErrors, 1)
	assert.Equal(t, "bad", result.KeywordErrors[0].Keyword)
	assert.ErrorIs(t, result.KeywordErrors[0], client.ErrRetryExhausted)
}

func TestCollect_ContinuationFailureKeepsEarlierPages(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{{rated("A", 1.0), rated("B", 2.0)}, {rated("C", 1.0)}}
	searcher.failAt["diner"] = 1

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner"},
		Limit:     10,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(result.Candidates))
	assert.Equal(t, 2, result.TotalFetched)
	assert.Equal(t, 2, result.FilteredCount)
	require.Len(t, result.KeywordErrors, 1)
	assert.ErrorIs(t, result.KeywordErrors[0], client.ErrRetryExhausted)
}

func TestCollect_EveryKeywordFailsAfterFirstPage(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["a"] = [][]places.Candidate{{rated("A", 1.0)}, {rated("X", 1.0)}}
	searcher.pages["b"] = [][]places.Candidate{{rated("B", 1.0)}, {rated("Y", 1.0)}}
	searcher.failAt["a"] = 1
	searcher.failAt["b"] = 1

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"a", "b"},
		Limit:     10,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(result.Candidates))
	assert.Len(t, result.KeywordErrors, 2)
}

func TestCollect_AllKeywordsFailed(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.failAt["a"] = 0
	searcher.failAt["b"] = 0

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"a", "b"},
		Limit:     10,
		Threshold: 3.0,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrAllKeywordsFailed)
	assert.ErrorIs(t, err, client.ErrRetryExhausted)

	var kerr *KeywordError
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, "a", kerr.Keyword)
}

func TestCollect_EmptyResultIsValid(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.pages["diner"] = [][]places.Candidate{{rated("A", 4.5), unrated("B")}}

	result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
		Keywords:  []string{"diner", "nothing"},
		Limit:     5,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 0, result.FilteredCount)
	assert.Equal(t, 2, result.TotalFetched)
}

func TestCollect_ContextCancelledIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := newFakeSearcher()
	searcher.pages["a"] = [][]places.Candidate{{rated("A", 1.0)}}
	searcher.pages["b"] = [][]places.Candidate{{rated("B", 1.0)}}
	searcher.onCall = func(call searchCall) {
		if call.query == "b" {
			cancel()
		}
	}

	result, err := newTestAggregator(searcher).Collect(ctx, Params{
		Keywords:  []string{"a", "b"},
		Limit:     10,
		Threshold: 3.0,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllKeywordsFailed)
}

func TestCollect_DeadlineKeepsCollected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	searcher := newFakeSearcher()
	searcher.pages["a"] = [][]places.Candidate{{rated("A", 1.0)}}
	searcher.pages["b"] = [][]places.Candidate{{rated("B", 1.0)}}
	searcher.pages["c"] = [][]places.Candidate{{rated("C", 1.0)}}
	searcher.onCall = func(call searchCall) {
		if call.query == "b" {
			<-ctx.Done()
		}
	}

	result, err := newTestAggregator(searcher).Collect(ctx, Params{
		Keywords:  []string{"a", "b", "c"},
		Limit:     10,
		Threshold: 3.0,
	})
	require.NoError(t, err)

	assert.True(t, result.DeadlineReached)
	assert.Equal(t, []string{"A"}, ids(result.Candidates))
	require.Len(t, result.KeywordErrors, 1)
	assert.Equal(t, "b", result.KeywordErrors[0].Keyword)
	assert.ErrorIs(t, result.KeywordErrors[0], context.DeadlineExceeded)
	assert.Equal(t, 2, searcher.callCount(), "keywords after the deadline are skipped")
}

func TestCollect_DeadlineBeforeFirstPageIsFatal(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	searcher := newFakeSearcher()
	searcher.pages["a"] = [][]places.Candidate{{rated("A", 1.0)}}

	result, err := newTestAggregator(searcher).Collect(ctx, Params{
		Keywords:  []string{"a"},
		Limit:     10,
		Threshold: 3.0,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollect_InvalidParams(t *testing.T) {
	agg := newTestAggregator(newFakeSearcher())

	_, err := agg.Collect(context.Background(), Params{Limit: 1, Threshold: 3})
	assert.ErrorIs(t, err, ErrNoKeywords)

	_, err = agg.Collect(context.Background(), Params{Keywords: []string{"q"}, Limit: 0})
	assert.Error(t, err)
}

func TestCollect_NeverExceedsLimit(t *testing.T) {
	searcher := newFakeSearcher()
	for k := 0; k < 3; k++ {
		keyword := fmt.Sprintf("k%d", k)
		var chain [][]places.Candidate
		for p := 0; p < 3; p++ {
			var page []places.Candidate
			for i := 0; i < 7; i++ {
				page = append(page, rated(fmt.Sprintf("%s-%d-%d", keyword, p, i), float64(i%5)))
			}
			chain = append(chain, page)
		}
		searcher.pages[keyword] = chain
	}

	for limit := 1; limit <= 40; limit++ {
		result, err := newTestAggregator(searcher).Collect(context.Background(), Params{
			Keywords:  []string{"k0", "k1", "k2"},
			Limit:     limit,
			Threshold: 3.0,
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(result.Candidates), limit)
		assert.Equal(t, len(result.Candidates), result.FilteredCount)
	}
}
