package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/etymology-service/internal/coordinator"
	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/extractor"
	"github.com/user/etymology-service/internal/index"
	"github.com/user/etymology-service/internal/monitoring"
	"github.com/user/etymology-service/internal/parser"
	"github.com/user/etymology-service/internal/storage"
)

var (
	wordsFile    string
	outputFormat string
	save         bool
	refresh      bool
	letters      []string
	maxPages     int
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [words...]",
	Short: "Looks up the etymology of the given words and prints the results.",
	RunE:  runLookup,
}

func init() {
	lookupCmd.Flags().StringVarP(&wordsFile, "file", "f", "", "read words from a file, one per line")
	lookupCmd.Flags().StringVarP(&outputFormat, "format", "o", "table", "output format: table or json")
	lookupCmd.Flags().BoolVar(&save, "save", false, "store results in Postgres (POSTGRES_URL)")
	lookupCmd.Flags().BoolVar(&refresh, "refresh", false, "ignore results remembered in Redis for these words")
	lookupCmd.Flags().StringSliceVar(&letters, "letter", nil, "also look up every word in the site's index for these letters")
	lookupCmd.Flags().IntVar(&maxPages, "max-index-pages", 0, "read at most this many index pages per letter (0 for all)")
}

func runLookup(cmd *cobra.Command, args []string) error {
	if outputFormat != "table" && outputFormat != "json" {
		return fmt.Errorf("unknown format %q", outputFormat)
	}
	words := append([]string(nil), args...)
	if wordsFile != "" {
		fromFile, err := readWordsFile(wordsFile)
		if err != nil {
			return err
		}
		words = append(words, fromFile...)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	f, err := newFetcher(cfg, metrics, logger)
	if err != nil {
		return err
	}
	if len(letters) > 0 {
		fromIndex, err := harvest(ctx, f, letters)
		if err != nil {
			return err
		}
		words = append(words, fromIndex...)
	}
	if len(words) == 0 {
		return errors.New("no words given")
	}

	var opts []coordinator.Option
	if cfg.RedisAddr != "" {
		seen := storage.NewRedisSeenSet(storage.NewRedisClient(cfg.RedisAddr), cfg.SeenTTL)
		defer seen.Close()
		if refresh {
			forget(ctx, seen, words)
		}
		opts = append(opts, coordinator.WithSeenSet(seen))
	}

	var entries *storage.EntryStore
	if save {
		if cfg.PostgresURL == "" {
			return errors.New("--save needs POSTGRES_URL")
		}
		entries, err = storage.NewEntryStore(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer entries.Close()
		if err := entries.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("prepare schema: %w", err)
		}
	}

	var done atomic.Int64
	total := len(words)
	opts = append(opts, coordinator.WithProgress(func(input string, res domain.FetchResult) {
		logger.Info("lookup progress",
			zap.String("input", input),
			zap.String("outcome", string(res.Outcome)),
			zap.Int64("done", done.Add(1)),
			zap.Int("total", total),
		)
	}))

	c, err := newCoordinator(cfg, f, metrics, logger, opts...)
	if err != nil {
		return err
	}

	results, runErr := c.Run(ctx, words)

	if entries != nil && runErr == nil {
		if err := entries.SaveResults(ctx, domain.Distinct(results)); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
	}
	if err := render(cmd.OutOrStdout(), outputFormat, words, results); err != nil {
		return err
	}
	return runErr
}

// readWordsFile reads one word per line. Blank lines and lines starting
// with '#' are skipped.
func readWordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readWords(f)
}

func readWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}

// harvest collects the index words for each letter.
func harvest(ctx context.Context, f index.Fetcher, letters []string) ([]string, error) {
	h, err := index.New(f, parser.NewHTMLParser(), extractor.New(extractor.Etymonline),
		index.WithConcurrency(cfg.Concurrency),
		index.WithMaxPages(maxPages),
		index.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	var words []string
	for _, letter := range letters {
		fromLetter, err := h.Words(ctx, letter)
		if err != nil {
			return nil, err
		}
		words = append(words, fromLetter...)
	}
	return words, nil
}

func forget(ctx context.Context, seen *storage.RedisSeenSet, words []string) {
	for _, w := range words {
		q, err := domain.NormalizeQuery(w)
		if err != nil {
			continue
		}
		if err := seen.Forget(ctx, q); err != nil {
			logger.Warn("could not forget word", zap.String("word", q.String()), zap.Error(err))
		}
	}
}
