package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/etymology-service/internal/api"
	"github.com/user/etymology-service/internal/coordinator"
	"github.com/user/etymology-service/internal/monitoring"
	"github.com/user/etymology-service/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the lookup HTTP API.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var coordOpts []coordinator.Option
	var serverOpts []api.Option

	// Initialize Storage Layer
	if cfg.RedisAddr != "" {
		seen := storage.NewRedisSeenSet(storage.NewRedisClient(cfg.RedisAddr), cfg.SeenTTL)
		defer seen.Close()
		coordOpts = append(coordOpts, coordinator.WithSeenSet(seen))
		serverOpts = append(serverOpts, api.WithHealthCheck("redis", seen))
	}
	if cfg.PostgresURL != "" {
		entries, err := storage.NewEntryStore(cmd.Context(), cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer entries.Close()
		if err := entries.EnsureSchema(cmd.Context()); err != nil {
			logger.Warn("could not prepare schema, results will not be saved", zap.Error(err))
		} else {
			serverOpts = append(serverOpts, api.WithRecorder(entries))
		}
		serverOpts = append(serverOpts, api.WithHealthCheck("postgres", entries))
	}

	metrics := monitoring.NewMetrics(reg)
	f, err := newFetcher(cfg, metrics, logger)
	if err != nil {
		return err
	}
	c, err := newCoordinator(cfg, f, metrics, logger, coordOpts...)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.ServerPort, c, reg, metrics, logger, serverOpts...)

	// Graceful Shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exiting")
	return nil
}
