package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/engine"
	"github.com/opensource-delivery/kite/internal/history"
	"github.com/opensource-delivery/kite/internal/intel"
	"github.com/opensource-delivery/kite/internal/mailer"
	"github.com/opensource-delivery/kite/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, rateLimit domain.RateLimitConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, orchestrator *engine.Orchestrator, policyEngine *policy.Engine, analyzer *intel.Analyzer, profiler *history.Profiler, m *mailer.Mailer, rulesPath string, version string) *Server {
	handler := NewHandler(repo, cache, bus, orchestrator, policyEngine, analyzer, profiler, m, rulesPath, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Classification endpoints, rate limited per client IP
	router.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cache, rateLimit))

		r.Post("/classify", handler.Classify)
		r.Post("/batch/classify", handler.BatchClassify)
		r.Post("/rewrite", handler.Rewrite)
	})

	// Audit log
	router.Get("/complaints", handler.ListComplaints)
	router.Get("/complaints/{id}", handler.GetComplaint)

	// Customer history
	router.Get("/customers/top", handler.TopCustomers)
	router.Get("/customers/{id}", handler.GetCustomer)

	// Agent feedback
	router.Post("/feedback", handler.SubmitFeedback)
	router.Get("/feedback", handler.ListFeedback)

	// Analytics
	router.Get("/analytics/overview", handler.AnalyticsOverview)
	router.Get("/analytics/root-causes", handler.AnalyticsRootCauses)

	// Rule management
	router.Get("/rules", handler.ListRules)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
