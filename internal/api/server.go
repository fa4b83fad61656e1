package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/monitoring"
)

// Runner resolves a batch of words.
type Runner interface {
	Run(ctx context.Context, inputs []string) (map[string]domain.FetchResult, error)
}

// Recorder persists the results of a run.
type Recorder interface {
	SaveResults(ctx context.Context, results []domain.FetchResult) error
}

// Pinger is a dependency reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	port       string
	router     http.Handler
	httpServer *http.Server
	runner     Runner
	recorder   Recorder
	checks     map[string]Pinger
	gatherer   prometheus.Gatherer
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

type Option func(*Server)

// WithRecorder saves every run's results after the response is built.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithHealthCheck adds a named dependency to /api/health.
func WithHealthCheck(name string, p Pinger) Option {
	return func(s *Server) { s.checks[name] = p }
}

func NewServer(port string, runner Runner, g prometheus.Gatherer, m *monitoring.Metrics, l *zap.Logger, opts ...Option) *Server {
	s := &Server{
		port:     port,
		runner:   runner,
		checks:   make(map[string]Pinger),
		gatherer: g,
		metrics:  m,
		logger:   l,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: lookupTimeout + 10*time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
