package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/monitoring"
	"github.com/user/etymology-service/internal/parser"
)

const defaultConcurrency = 4

// Fetcher downloads the page for a word.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.WordQuery) (*domain.RawPage, error)
}

// Parser turns a page into a queryable document.
type Parser interface {
	Parse(page *domain.RawPage) (*parser.Document, error)
}

// Extractor finds the entry for a word in a document.
type Extractor interface {
	Extract(doc *parser.Document, q domain.WordQuery) (*domain.EtymologyEntry, bool, error)
}

// ProgressFunc is called once per input string as soon as its outcome is
// known. Calls are serialized but arrive in completion order.
type ProgressFunc func(input string, result domain.FetchResult)

// Coordinator runs the fetch, parse and extract pipeline for a batch of words.
type Coordinator struct {
	fetcher     Fetcher
	parser      Parser
	extractor   Extractor
	concurrency int
	seen        SeenSet
	progress    ProgressFunc
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

type Option func(*Coordinator)

// WithConcurrency bounds the number of words processed at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) { c.concurrency = n }
}

// WithSeenSet supplies a pre-populated seen-set shared across runs. Without
// it every run starts from an empty in-memory set.
func WithSeenSet(s SeenSet) Option {
	return func(c *Coordinator) { c.seen = s }
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Coordinator) { c.progress = fn }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func New(f Fetcher, p Parser, e Extractor, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		fetcher:     f,
		parser:      p,
		extractor:   e,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if f == nil || p == nil || e == nil {
		return nil, errors.New("coordinator needs a fetcher, parser and extractor")
	}
	if c.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", c.concurrency)
	}
	return c, nil
}

// Run resolves every input and returns one result per distinct input string.
// Inputs that normalize to the same word are fetched once and share the
// result. Per-word failures are recorded in the map; the returned error is
// non-nil only when cancellation of ctx left some word unresolved, in which
// case those words carry a canceled failure.
func (c *Coordinator) Run(ctx context.Context, inputs []string) (map[string]domain.FetchResult, error) {
	runID := RunIDFromContext(ctx)
	logger := c.logger.With(zap.String("run_id", runID))
	logger.Info("lookup run started", zap.Int("inputs", len(inputs)))

	seen := c.seen
	if seen == nil {
		seen = NewMemorySeenSet()
	}
	b := &batch{
		results:  make(map[string]domain.FetchResult, len(inputs)),
		progress: c.progress,
		metrics:  c.metrics,
		logger:   logger,
	}

	groups := make(map[domain.WordQuery][]string)
	var order []domain.WordQuery
	for _, in := range inputs {
		q, err := domain.NormalizeQuery(in)
		if err != nil {
			b.resolve([]string{in}, domain.Failed(q, fmt.Errorf("input %q: %w", in, err)))
			continue
		}
		if _, ok := groups[q]; !ok {
			order = append(order, q)
		}
		groups[q] = append(groups[q], in)
	}

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, q := range order {
		originals := groups[q]
		if err := ctx.Err(); err != nil {
			b.resolve(originals, domain.Canceled(q, err))
			continue
		}

		res, ok, err := seen.Lookup(ctx, q)
		if err != nil {
			logger.Warn("seen-set lookup failed", zap.String("word", q.String()), zap.Error(err))
		} else if ok {
			logger.Debug("word already resolved", zap.String("word", q.String()))
			b.resolve(originals, res)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				b.resolve(originals, domain.Canceled(q, err))
				return nil
			}
			res := c.resolve(ctx, q)
			if res.Resolved() {
				if err := seen.Store(ctx, q, res); err != nil {
					logger.Warn("seen-set store failed", zap.String("word", q.String()), zap.Error(err))
				}
			}
			b.resolve(originals, res)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("lookup run finished", zap.Int("results", len(b.results)), zap.Int("words", len(order)))
	if b.interrupted {
		return b.results, ctx.Err()
	}
	return b.results, nil
}

// resolve runs the pipeline for one word. A panic in any stage is turned
// into a failed result so the rest of the batch is unaffected.
func (c *Coordinator) resolve(ctx context.Context, q domain.WordQuery) (res domain.FetchResult) {
	c.metrics.QueryStarted()
	defer c.metrics.QueryDone()
	defer func() {
		if r := recover(); r != nil {
			res = domain.Failed(q, fmt.Errorf("pipeline panic for %q: %v", q, r))
		}
	}()

	page, err := c.fetcher.Fetch(ctx, q)
	if err != nil {
		return domain.Failed(q, fmt.Errorf("fetch %q: %w", q, err))
	}
	doc, err := c.parser.Parse(page)
	if err != nil {
		return domain.Failed(q, fmt.Errorf("parse %q: %w", q, err))
	}
	entry, found, err := c.extractor.Extract(doc, q)
	if err != nil {
		return domain.Failed(q, fmt.Errorf("extract %q: %w", q, err))
	}
	if !found {
		return domain.NotFound(q)
	}
	return domain.Found(q, entry)
}

type runIDKey struct{}

// ContextWithRunID tags the run started with ctx so its logs can be matched
// to the caller's records.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the tagged run ID, or a fresh one.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// batch collects results for one run.
type batch struct {
	mu          sync.Mutex
	results     map[string]domain.FetchResult
	interrupted bool // some word was canceled
	progressMu  sync.Mutex
	progress    ProgressFunc
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

// resolve records res under every original input and reports progress once
// per input.
func (b *batch) resolve(originals []string, res domain.FetchResult) {
	b.mu.Lock()
	for _, in := range originals {
		b.results[in] = res
	}
	if res.Failure != nil && res.Failure.Kind == domain.KindCanceled {
		b.interrupted = true
	}
	b.mu.Unlock()

	kind := ""
	fields := []zap.Field{zap.String("word", res.Query.String()), zap.String("outcome", string(res.Outcome))}
	if res.Failure != nil {
		kind = string(res.Failure.Kind)
		fields = append(fields, zap.String("error_kind", kind), zap.String("error", res.Failure.Message))
	}
	b.metrics.IncResult(string(res.Outcome), kind)
	if res.Outcome == domain.OutcomeFailed {
		b.logger.Warn("word failed", fields...)
	} else {
		b.logger.Info("word resolved", fields...)
	}

	if b.progress == nil {
		return
	}
	b.progressMu.Lock()
	defer b.progressMu.Unlock()
	for _, in := range originals {
		b.progress(in, res)
	}
}
