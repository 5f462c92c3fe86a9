// Package httpserver provides the HTTP REST API server for the research assistant service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/research-assistant-service/internal/assistant"
	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/observability"
	"github.com/helixir/research-assistant-service/internal/papersources"
)

// Assistant runs the prompt-driven workflow steps. assistant.Service satisfies it.
type Assistant interface {
	InitialContent(ctx context.Context, prompt string) (string, error)
	ConfirmationQuestion(ctx context.Context, prompt string, stage domain.Stage, feedback []domain.Feedback) (string, error)
	Strategies(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error)
	SearchQueries(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error)
	ValidatePapers(ctx context.Context, prompt string, papers []domain.Paper) ([]domain.Paper, error)
	Report(ctx context.Context, in assistant.ReportInput) (string, error)
	ManualSource(in assistant.ManualSourceInput) (domain.Paper, error)
}

// Aggregator collects papers for a list of queries. aggregator.Pipeline satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, queries []string) ([]domain.Paper, error)
}

// SourceLister lists the configured paper sources. papersources.Registry satisfies it.
type SourceLister interface {
	AllSources() []papersources.PaperSource
	EnabledSources() []papersources.PaperSource
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	assistant  Assistant
	aggregator Aggregator
	sources    SourceLister
	validate   *validator.Validate
	logger     zerolog.Logger
	metrics    *observability.Metrics
	config     Config
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes limits request bodies. Zero means 1 MB.
	MaxBodyBytes int64

	// CORSAllowedOrigins lists allowed origins. Empty allows all.
	CORSAllowedOrigins []string
}

// DefaultMaxBodyBytes is the request body limit when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// NewServer creates a new HTTP server with all dependencies. metrics may be nil.
func NewServer(
	cfg Config,
	assistant Assistant,
	aggregator Aggregator,
	sources SourceLister,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	s := &Server{
		assistant:  assistant,
		aggregator: aggregator,
		sources:    sources,
		validate:   newValidator(),
		logger:     logger.With().Str("component", "http-server").Logger(),
		metrics:    metrics,
		config:     cfg,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-ID", "X-Request-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))
	r.Use(s.metricsMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-initial-content", s.generateInitialContent)
		r.Post("/generate-confirmation-question", s.generateConfirmationQuestion)
		r.Post("/generate-strategies", s.generateStrategies)
		r.Post("/generate-search-queries", s.generateSearchQueries)
		r.Post("/search-papers", s.searchPapers)
		r.Post("/validate-papers", s.validatePapers)
		r.Post("/generate-report", s.generateReport)
		r.Post("/manual-sources", s.createManualSource)
		r.Get("/sources", s.listSources)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once at least one paper source is enabled.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	enabled := len(s.sources.EnabledSources())
	if enabled == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":          "not_ready",
			"enabled_sources": enabled,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"enabled_sources": enabled,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
