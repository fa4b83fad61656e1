// Package index collects word lists from the site's alphabetical index, so a
// whole letter can be looked up without naming every word.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/parser"
)

const defaultConcurrency = 4

// Fetcher downloads one page of the index for a letter.
type Fetcher interface {
	FetchIndex(ctx context.Context, letter string, page int) (*domain.RawPage, error)
}

type Parser interface {
	Parse(page *domain.RawPage) (*parser.Document, error)
}

// Reader reads the entries and page count of an index page.
type Reader interface {
	Headwords(doc *parser.Document) []string
	PageCount(doc *parser.Document) int
}

// Harvester walks every page of a letter's index.
type Harvester struct {
	fetcher     Fetcher
	parser      Parser
	reader      Reader
	concurrency int
	maxPages    int
	logger      *zap.Logger
}

type Option func(*Harvester)

func WithConcurrency(n int) Option {
	return func(h *Harvester) { h.concurrency = n }
}

// WithMaxPages stops after the first n index pages. Zero means all pages.
func WithMaxPages(n int) Option {
	return func(h *Harvester) { h.maxPages = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

func New(f Fetcher, p Parser, r Reader, opts ...Option) (*Harvester, error) {
	h := &Harvester{
		fetcher:     f,
		parser:      p,
		reader:      r,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if f == nil || p == nil || r == nil {
		return nil, errors.New("harvester needs a fetcher, parser and reader")
	}
	if h.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", h.concurrency)
	}
	if h.maxPages < 0 {
		return nil, fmt.Errorf("max pages must not be negative, got %d", h.maxPages)
	}
	return h, nil
}

// Words returns the headwords listed under letter, in index order without
// repeats. The first page gives the page count, so failing to load it is an
// error; later pages that fail are logged and skipped.
func (h *Harvester) Words(ctx context.Context, letter string) ([]string, error) {
	letter = strings.ToLower(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'a' || letter[0] > 'z' {
		return nil, fmt.Errorf("index letter %q: %w", letter, domain.ErrInvalidQuery)
	}
	logger := h.logger.With(zap.String("letter", letter))

	first, err := h.page(ctx, letter, 1)
	if err != nil {
		return nil, fmt.Errorf("index page 1 for %q: %w", letter, err)
	}
	count := h.reader.PageCount(first)
	if h.maxPages > 0 && count > h.maxPages {
		count = h.maxPages
	}

	pages := make([][]string, count)
	pages[0] = h.reader.Headwords(first)

	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(h.concurrency)
	for n := 2; n <= count; n++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			doc, err := h.page(ctx, letter, n)
			if err != nil {
				failed.Add(1)
				logger.Warn("index page failed", zap.Int("page", n), zap.Error(err))
				return nil
			}
			pages[n-1] = h.reader.Headwords(doc)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var words []string
	for _, page := range pages {
		for _, w := range page {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	logger.Info("index harvested",
		zap.Int("pages", count), zap.Int32("failed_pages", failed.Load()), zap.Int("words", len(words)))
	return words, nil
}

func (h *Harvester) page(ctx context.Context, letter string, n int) (*parser.Document, error) {
	raw, err := h.fetcher.FetchIndex(ctx, letter, n)
	if err != nil {
		return nil, err
	}
	return h.parser.Parse(raw)
}
