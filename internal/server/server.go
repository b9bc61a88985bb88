// Package server provides the HTTP API for the embedding service.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/lexembed/internal/config"
	"github.com/hyperjump/lexembed/internal/embedding"
	"github.com/hyperjump/lexembed/internal/metrics"
	"go.uber.org/zap"
)

// EmbeddingService is the part of embedding.Service the HTTP layer uses.
type EmbeddingService interface {
	Embed(ctx context.Context, texts []string, pooling embedding.Pooling) ([][]float32, error)
	Status() embedding.Status
	Ready() bool
}

// Server is the HTTP server for the embedding API.
type Server struct {
	svc     EmbeddingService
	config  *config.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. m may be nil to disable metrics.
func NewServer(svc EmbeddingService, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.Router(),
	}
	return s
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/embed", s.handleEmbed)
	r.Post("/embed/legacy", s.handleEmbedLegacy)
	if s.metrics != nil && s.config.Metrics.EnabledOrDefault() {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server. A later Start returns http.ErrServerClosed.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
