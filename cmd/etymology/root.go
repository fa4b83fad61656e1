package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/etymology-service/internal/config"
	"github.com/user/etymology-service/internal/coordinator"
	"github.com/user/etymology-service/internal/extractor"
	"github.com/user/etymology-service/internal/fetcher"
	"github.com/user/etymology-service/internal/logging"
	"github.com/user/etymology-service/internal/monitoring"
	"github.com/user/etymology-service/internal/parser"
)

var (
	envFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "etymology",
	Short:         "etymology looks up word origins on an online etymology dictionary.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("could not load config: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env configuration file")
	rootCmd.AddCommand(lookupCmd, serveCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newFetcher builds the HTTP fetcher shared by word lookups and index walks.
func newFetcher(cfg *config.Config, m *monitoring.Metrics, l *zap.Logger) (*fetcher.HTTPFetcher, error) {
	rotator, err := fetcher.NewRotator(cfg.UserAgents, cfg.Proxies)
	if err != nil {
		return nil, err
	}
	policy := fetcher.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.InitialInterval = cfg.BackoffInitial
	policy.MaxInterval = cfg.BackoffMax

	return fetcher.New(fetcher.Options{
		BaseURL:      cfg.BaseURL,
		SearchPath:   cfg.SearchPath,
		Timeout:      cfg.RequestTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Retry:        policy,
		Rotator:      rotator,
	}, m, l)
}

// newCoordinator builds the fetch, parse and extract pipeline from config.
func newCoordinator(cfg *config.Config, f coordinator.Fetcher, m *monitoring.Metrics, l *zap.Logger, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	opts = append([]coordinator.Option{
		coordinator.WithConcurrency(cfg.Concurrency),
		coordinator.WithMetrics(m),
		coordinator.WithLogger(l),
	}, opts...)
	return coordinator.New(f, parser.NewHTMLParser(), extractor.New(extractor.Etymonline), opts...)
}
