package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/register"
	"github.com/opensource-finance/harrier/internal/risk"
	"github.com/opensource-finance/harrier/internal/ubo"
	"github.com/opensource-finance/harrier/internal/validate"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, resolver *ubo.Resolver, validator *validate.Validator, registers *register.Builder, processor *risk.Processor, version string) *Server {
	handler := NewHandler(repo, cache, bus, resolver, validator, registers, processor, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Party and relationship management
		r.Post("/parties", handler.CreateParty)
		r.Get("/parties/{id}", handler.GetParty)
		r.Get("/parties/{id}/edges", handler.ListEdges)
		r.Post("/edges", handler.CreateEdge)

		// UBO resolution
		r.Post("/parties/{id}/resolve", handler.Resolve)
		r.Get("/resolutions/{id}", handler.GetResolution)

		// Structure validation
		r.Post("/parties/{id}/validate", handler.Validate)

		// Risk scoring
		r.Post("/parties/{id}/risk", handler.ScoreRisk)
		r.Get("/parties/{id}/risk", handler.GetRiskAssessment)

		// Statutory registers
		r.Get("/parties/{id}/register", handler.GetRegister)

		// Risk profile management
		r.Get("/risk-profiles", handler.ListRiskProfiles)
		r.Get("/risk-profiles/{id}", handler.GetRiskProfile)
		r.Post("/risk-profiles", handler.CreateRiskProfile)
		r.Post("/risk-profiles/reload", handler.ReloadRiskProfile)
	})

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
