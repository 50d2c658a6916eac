package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/previa-finance/previa-backend/internal/api/handlers"
	"github.com/previa-finance/previa-backend/internal/api/middleware"
	"github.com/previa-finance/previa-backend/internal/application/reconcile"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
	"github.com/previa-finance/previa-backend/internal/ratelimit"
	"github.com/previa-finance/previa-backend/internal/webhook"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
	JWTSecret      string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	service    *reconcile.Service
	notifier   *webhook.Notifier
	limiter    *ratelimit.Limiter
}

// NewServer creates a new API server. The notifier and limiter may be nil;
// the matching endpoints degrade per the service's own nil-ranker handling.
func NewServer(cfg Config, repo storage.Repository, service *reconcile.Service, notifier *webhook.Notifier, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		repo:     repo,
		service:  service,
		notifier: notifier,
		limiter:  limiter,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix, no auth - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	// Everything under /api requires a bearer token
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(s.config.JWTSecret))

		receiptsHandler := handlers.NewReceiptsHandler(s.repo, s.service, s.notifier, s.logger)
		r.Post("/receipts", receiptsHandler.Create)
		r.Get("/receipts", receiptsHandler.List)
		r.Get("/receipts/{id}", receiptsHandler.Get)
		r.Post("/receipts/{id}/ocr", receiptsHandler.OCRCallback)
		r.Post("/receipts/{id}/match", receiptsHandler.Match)

		transactionsHandler := handlers.NewTransactionsHandler(s.repo, s.logger)
		r.Get("/transactions", transactionsHandler.List)
		r.Post("/transactions", transactionsHandler.Create)
		r.Patch("/transactions/{id}", transactionsHandler.Update)

		suggestionsHandler := handlers.NewSuggestionsHandler(s.repo, s.service, s.logger)
		r.Get("/suggestions", suggestionsHandler.List)
		r.Get("/suggestions/stats", suggestionsHandler.Stats)
		r.Post("/suggestions/{id}/approve", suggestionsHandler.Approve)
		r.Post("/suggestions/{id}/reject", suggestionsHandler.Reject)
		r.Post("/suggestions/bulk-approve", suggestionsHandler.BulkApprove)

		demoHandler := handlers.NewDemoHandler(s.repo, s.limiter, s.logger)
		r.Post("/demo-data", demoHandler.Seed)
		r.Delete("/demo-data", demoHandler.Delete)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
