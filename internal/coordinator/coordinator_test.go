package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/extractor"
	"github.com/user/etymology-service/internal/fetcher"
	"github.com/user/etymology-service/internal/monitoring"
	"github.com/user/etymology-service/internal/parser"
)

// Mocks
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RawPage), args.Error(1)
}

// funcFetcher adapts a function to the Fetcher interface.
type funcFetcher func(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error)

func (f funcFetcher) Fetch(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
	return f(ctx, q)
}

func entryHTML(word string) string {
	return fmt.Sprintf(`<html><body><div class="word--x"><h1 class="word__name--y">%s (n.)</h1>
		<p>Origin of %s, see <a href="/word/origin">origin</a>.</p></div></body></html>`, word, word)
}

func wordPage(q domain.WordQuery) *domain.RawPage {
	return &domain.RawPage{
		Query:       q,
		URL:         "https://www.etymonline.com/word/" + q.String(),
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(entryHTML(q.String())),
	}
}

func stubFetcher() funcFetcher {
	return func(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		return wordPage(q), nil
	}
}

func newCoordinator(t *testing.T, f Fetcher, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(f, parser.NewHTMLParser(), extractor.New(extractor.Etymonline), opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadConfiguration(t *testing.T) {
	_, err := New(stubFetcher(), parser.NewHTMLParser(), extractor.New(extractor.Etymonline), WithConcurrency(0))
	assert.Error(t, err)

	_, err = New(nil, parser.NewHTMLParser(), extractor.New(extractor.Etymonline))
	assert.Error(t, err)
}

func TestRun_RejectsBlankQueriesBeforeDispatch(t *testing.T) {
	mockFetcher := new(MockFetcher)
	c := newCoordinator(t, mockFetcher)

	results, err := c.Run(context.Background(), []string{"", "   ", "\t\n"})

	require.NoError(t, err)
	require.Len(t, results, 3)
	for in, res := range results {
		assert.Equal(t, domain.OutcomeFailed, res.Outcome, "%q", in)
		assert.Equal(t, domain.KindValidation, res.Failure.Kind, "%q", in)
	}
	mockFetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestRun_DuplicatesFetchOnce(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, domain.WordQuery("cat")).Return(wordPage("cat"), nil).Once()
	mockFetcher.On("Fetch", mock.Anything, domain.WordQuery("dog")).Return(wordPage("dog"), nil).Once()

	var calls []string
	c := newCoordinator(t, mockFetcher, WithProgress(func(in string, _ domain.FetchResult) {
		calls = append(calls, in)
	}))

	inputs := []string{"Cat", " cat ", "CAT", "dog", "dog"}
	results, err := c.Run(context.Background(), inputs)

	require.NoError(t, err)
	assert.Len(t, results, 4) // "dog" appears twice verbatim
	for _, in := range inputs {
		res := results[in]
		assert.Equal(t, domain.OutcomeFound, res.Outcome, in)
	}
	assert.Equal(t, "cat", results["CAT"].Entry.Headword)
	assert.ElementsMatch(t, inputs, calls)
	mockFetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestRun_IsolatesFailures(t *testing.T) {
	words := []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}
	broken := domain.WordQuery("five")

	c := newCoordinator(t, funcFetcher(func(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		page := wordPage(q)
		if q == broken {
			page.Body = nil
		}
		return page, nil
	}), WithConcurrency(3))

	results, err := c.Run(context.Background(), words)

	require.NoError(t, err)
	require.Len(t, results, 10)
	for _, w := range words {
		if domain.WordQuery(w) == broken {
			assert.Equal(t, domain.OutcomeFailed, results[w].Outcome)
			assert.Equal(t, domain.KindMalformedMarkup, results[w].Failure.Kind)
			continue
		}
		assert.Equal(t, domain.OutcomeFound, results[w].Outcome, w)
		assert.Equal(t, w, results[w].Entry.Headword)
	}
}

func TestRun_NotFoundIsAnOutcome(t *testing.T) {
	c := newCoordinator(t, funcFetcher(func(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		page := wordPage(q)
		page.Body = []byte(`<html><body><p>No results were found.</p></body></html>`)
		return page, nil
	}))

	results, err := c.Run(context.Background(), []string{"xyzzy"})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotFound, results["xyzzy"].Outcome)
	assert.Nil(t, results["xyzzy"].Failure)
}

func TestRun_RecoversFromPanics(t *testing.T) {
	c := newCoordinator(t, funcFetcher(func(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		if q == "boom" {
			panic("unexpected")
		}
		return wordPage(q), nil
	}))

	results, err := c.Run(context.Background(), []string{"boom", "cat"})

	require.NoError(t, err)
	assert.Equal(t, domain.KindUnknown, results["boom"].Failure.Kind)
	assert.Equal(t, domain.OutcomeFound, results["cat"].Outcome)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	c := newCoordinator(t, funcFetcher(func(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return wordPage(q), nil
	}), WithConcurrency(2))

	words := make([]string, 12)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	results, err := c.Run(context.Background(), words)

	require.NoError(t, err)
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	mockFetcher := new(MockFetcher)
	var progressCalls int
	c := newCoordinator(t, mockFetcher, WithProgress(func(string, domain.FetchResult) { progressCalls++ }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := c.Run(ctx, []string{"cat", "dog", " "})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 3)
	assert.Equal(t, domain.KindCanceled, results["cat"].Failure.Kind)
	assert.Equal(t, domain.KindCanceled, results["dog"].Failure.Kind)
	assert.Equal(t, domain.KindValidation, results[" "].Failure.Kind)
	assert.Equal(t, 3, progressCalls)
	mockFetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestRun_CancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetched []domain.WordQuery
	var mu sync.Mutex
	c := newCoordinator(t, funcFetcher(func(fctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		mu.Lock()
		fetched = append(fetched, q)
		mu.Unlock()
		cancel()
		return nil, &domain.NetworkError{URL: "u", Err: fctx.Err()}
	}), WithConcurrency(1))

	results, err := c.Run(ctx, []string{"a", "b", "c", "d"})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 4)
	assert.Len(t, fetched, 1)
	for _, w := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, domain.OutcomeFailed, results[w].Outcome, w)
		assert.Equal(t, domain.KindCanceled, results[w].Failure.Kind, w)
	}
}

func TestRun_UsesSuppliedSeenSet(t *testing.T) {
	seen := NewMemorySeenSet()
	cached := domain.Found("cat", &domain.EtymologyEntry{Headword: "cat", Origins: []string{"cached"}})
	require.NoError(t, seen.Store(context.Background(), "cat", cached))

	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, domain.WordQuery("dog")).Return(wordPage("dog"), nil).Once()
	mockFetcher.On("Fetch", mock.Anything, domain.WordQuery("gone")).
		Return(nil, &domain.HTTPError{URL: "u", Status: http.StatusGone}).Once()

	c := newCoordinator(t, mockFetcher, WithSeenSet(seen))
	results, err := c.Run(context.Background(), []string{"Cat", "dog", "gone"})

	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, results["Cat"].Entry.Origins)
	assert.Equal(t, domain.OutcomeFound, results["dog"].Outcome)
	// failures are not remembered so a later run retries them
	assert.Equal(t, 2, seen.Len())
	mockFetcher.AssertExpectations(t)
}

func TestRun_SeenSetErrorsAreNotFatal(t *testing.T) {
	c := newCoordinator(t, stubFetcher(), WithSeenSet(failingSeenSet{}))

	results, err := c.Run(context.Background(), []string{"cat"})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFound, results["cat"].Outcome)
}

type failingSeenSet struct{}

func (failingSeenSet) Lookup(context.Context, domain.WordQuery) (domain.FetchResult, bool, error) {
	return domain.FetchResult{}, false, errors.New("store down")
}

func (failingSeenSet) Store(context.Context, domain.WordQuery, domain.FetchResult) error {
	return errors.New("store down")
}

func TestRun_RecordsMetrics(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	c := newCoordinator(t, stubFetcher(), WithMetrics(m))

	_, err := c.Run(context.Background(), []string{"cat", ""})

	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultsTotal.WithLabelValues("found", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultsTotal.WithLabelValues("failed", "validation")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueriesInFlight))
}

// End-to-end with the HTTP fetcher against a flaky server.

func newHTTPCoordinator(t *testing.T, serverURL string) *Coordinator {
	t.Helper()
	policy := fetcher.DefaultRetryPolicy()
	policy.InitialInterval = time.Millisecond
	policy.MaxInterval = 5 * time.Millisecond

	f, err := fetcher.New(fetcher.Options{
		BaseURL: serverURL + "/word/",
		Timeout: time.Second,
		Retry:   policy,
	}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return newCoordinator(t, f)
}

func TestRun_SucceedsAfterTwoRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(entryHTML("cat")))
	}))
	defer server.Close()

	results, err := newHTTPCoordinator(t, server.URL).Run(context.Background(), []string{"cat"})

	require.NoError(t, err)
	res := results["cat"]
	assert.Equal(t, domain.OutcomeFound, res.Outcome)
	assert.Nil(t, res.Failure)
	assert.Equal(t, "cat", res.Entry.Headword)
	assert.NotEmpty(t, res.Entry.Origins)
	assert.Equal(t, []string{"origin"}, res.Entry.CrossReferences)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRun_NotFoundStatusFailsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	results, err := newHTTPCoordinator(t, server.URL).Run(context.Background(), []string{"qwxz"})

	require.NoError(t, err)
	res := results["qwxz"]
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Equal(t, domain.KindHTTP, res.Failure.Kind)
	assert.Equal(t, http.StatusNotFound, res.Failure.HTTPStatus)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunIDFromContext(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "run-1")
	assert.Equal(t, "run-1", RunIDFromContext(ctx))

	a, b := RunIDFromContext(context.Background()), RunIDFromContext(context.Background())
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRun_CancelAfterAllResolvedIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCoordinator(t, funcFetcher(func(_ context.Context, q domain.WordQuery) (*domain.RawPage, error) {
		cancel()
		return wordPage(q), nil
	}))

	results, err := c.Run(ctx, []string{"cat"})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFound, results["cat"].Outcome)
}
