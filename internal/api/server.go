package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/transfer-reconciler/internal/api/handlers"
	"github.com/eshaffer321/transfer-reconciler/internal/api/middleware"
	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Services are the application services exposed over HTTP.
// Routes for a nil service are not registered.
type Services struct {
	Detection    *service.DetectionService
	Ledger       *service.LedgerService
	Review       *service.ReviewService
	Transactions *service.TransactionService
}

// NewServices builds every service over one repository.
func NewServices(repo storage.Repository, detection service.DetectionOptions, ledger service.LedgerOptions, logger *slog.Logger) Services {
	if logger == nil {
		logger = slog.Default()
	}
	ledgerService := service.NewLedgerService(repo, ledger, logger.With("system", "ledger"))
	return Services{
		Detection:    service.NewDetectionService(repo, detection, logger.With("system", "detect")),
		Ledger:       ledgerService,
		Review:       service.NewReviewService(repo, logger.With("system", "review")),
		Transactions: service.NewTransactionService(repo, ledgerService, logger.With("system", "ingest")),
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		repo:     repo,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	// CORS
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(func(ctx context.Context) error {
		_, err := s.repo.ListDetectionRuns(ctx, 1)
		return err
	})
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Detection runs (historical)
		runsHandler := handlers.NewRunsHandler(s.repo, s.logger)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.repo, s.logger)
		r.Get("/stats", statsHandler.Get)

		if s.services.Detection != nil {
			detectionsHandler := handlers.NewDetectionsHandler(s.services.Detection, s.logger)
			r.Post("/detections", detectionsHandler.Create)
		}

		// Review queue
		if s.services.Review != nil {
			decisionsHandler := handlers.NewDecisionsHandler(s.services.Review, s.logger)
			r.Get("/decisions", decisionsHandler.List)
			r.Get("/decisions/{id}", decisionsHandler.Get)
			r.Post("/decisions/{id}/confirm", decisionsHandler.Confirm)
			r.Post("/decisions/{id}/reject", decisionsHandler.Reject)
		}

		// Manually declared transfers
		if s.services.Ledger != nil {
			pendingHandler := handlers.NewPendingTransfersHandler(s.services.Ledger, s.logger)
			r.Route("/pending-transfers", func(r chi.Router) {
				r.Post("/", pendingHandler.Create)
				r.Get("/", pendingHandler.List)
				r.Post("/match", pendingHandler.Match)
				r.Get("/{id}", pendingHandler.Get)
				r.Put("/{id}", pendingHandler.Update)
				r.Delete("/{id}", pendingHandler.Delete)
				r.Post("/{id}/cancel", pendingHandler.Cancel)
			})
		}

		// Statement ingestion
		if s.services.Transactions != nil {
			transactionsHandler := handlers.NewTransactionsHandler(s.services.Transactions, s.logger)
			r.Get("/transactions", transactionsHandler.List)
			r.Post("/transactions", transactionsHandler.Ingest)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Detection runs over a wide window can take a while
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
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
