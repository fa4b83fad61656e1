package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/monitoring"
)

const maxRedirects = 10

// Options configures an HTTPFetcher.
type Options struct {
	BaseURL      string // word pages live at BaseURL + <escaped word>
	SearchPath   string // index pages live at <BaseURL host> + SearchPath?q=<letter>&page=<n>
	Timeout      time.Duration
	MaxBodyBytes int64
	Retry        RetryPolicy
	Rotator      *Rotator
}

// HTTPFetcher downloads word pages with retry and per-attempt timeouts.
// It holds no state between calls apart from the rotator.
type HTTPFetcher struct {
	base       *url.URL
	searchPath string
	client     *http.Client
	timeout    time.Duration
	maxBody    int64
	retry      RetryPolicy
	rotator    *Rotator
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// New validates the base URL and builds the fetcher.
func New(opts Options, m *monitoring.Metrics, l *zap.Logger) (*HTTPFetcher, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: need an absolute http(s) URL", opts.BaseURL)
	}
	if opts.SearchPath == "" {
		opts.SearchPath = "/search"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Rotator == nil {
		opts.Rotator, _ = NewRotator(nil, nil)
	}
	if l == nil {
		l = zap.NewNop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Rotator.Proxy

	return &HTTPFetcher{
		base:       base,
		searchPath: opts.SearchPath,
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		timeout: opts.Timeout,
		maxBody: opts.MaxBodyBytes,
		retry:   opts.Retry,
		rotator: opts.Rotator,
		metrics: m,
		logger:  l,
	}, nil
}

// URLFor builds the page URL for q, with the word as one escaped path segment.
func (f *HTTPFetcher) URLFor(q domain.WordQuery) string {
	u := *f.base
	word := q.String()
	u.Path = strings.TrimSuffix(f.base.Path, "/") + "/" + word
	u.RawPath = strings.TrimSuffix(f.base.EscapedPath(), "/") + "/" + url.PathEscape(word)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Fetch downloads the page for q, retrying transient failures according to
// the retry policy.
func (f *HTTPFetcher) Fetch(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error) {
	page, err := f.get(ctx, f.URLFor(q))
	if err != nil {
		return nil, err
	}
	page.Query = q
	return page, nil
}

// IndexURL builds the URL of page n of the site's alphabetical index for
// letter.
func (f *HTTPFetcher) IndexURL(letter string, n int) string {
	u := *f.base
	u.Path = f.searchPath
	u.RawPath = ""
	u.RawQuery = url.Values{
		"q":    {letter},
		"page": {strconv.Itoa(n)},
	}.Encode()
	u.Fragment = ""
	return u.String()
}

// FetchIndex downloads page n of the alphabetical index for letter, with the
// same retry policy as word pages.
func (f *HTTPFetcher) FetchIndex(ctx context.Context, letter string, n int) (*domain.RawPage, error) {
	return f.get(ctx, f.IndexURL(letter, n))
}

func (f *HTTPFetcher) get(ctx context.Context, target string) (*domain.RawPage, error) {
	start := time.Now()

	var page *domain.RawPage
	err := f.retry.Do(ctx, func(ctx context.Context) error {
		p, err := f.attempt(ctx, target)
		if err != nil {
			return err
		}
		page = p
		return nil
	}, func(err error, wait time.Duration) {
		f.metrics.IncRetries()
		f.logger.Warn("transient fetch failure, retrying",
			zap.String("url", target), zap.Duration("backoff", wait), zap.Error(err))
	})

	outcome := "ok"
	if err != nil {
		outcome = string(domain.Classify(err))
	}
	f.metrics.ObserveFetch(outcome, time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, target string) (*domain.RawPage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", f.rotator.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	f.logger.Debug("fetching page", zap.String("url", target))
	resp, err := f.client.Do(req)
	if err != nil {
		var loopErr *domain.RedirectLoopError
		if errors.As(err, &loopErr) {
			f.metrics.IncFetchAttempt("redirect_loop")
			return nil, loopErr
		}
		f.metrics.IncFetchAttempt("network_error")
		return nil, &domain.NetworkError{URL: target, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.IncFetchAttempt("http_error")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.HTTPError{URL: target, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		f.metrics.IncFetchAttempt("network_error")
		return nil, &domain.NetworkError{URL: target, Timeout: isTimeout(err), Err: err}
	}
	if int64(len(body)) > f.maxBody {
		f.metrics.IncFetchAttempt("ok")
		return nil, &domain.MalformedMarkupError{URL: target, Reason: fmt.Sprintf("body exceeds %d bytes", f.maxBody)}
	}
	f.metrics.IncFetchAttempt("ok")

	return &domain.RawPage{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return &domain.RedirectLoopError{URL: req.URL.String(), Hops: len(via)}
	}
	next := req.URL.String()
	for _, prev := range via {
		if prev.URL.String() == next {
			return &domain.RedirectLoopError{URL: next, Hops: len(via)}
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
