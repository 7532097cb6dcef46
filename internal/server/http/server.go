// Package httpserver provides the HTTP API of the retrieval service: health
// checks, Prometheus metrics, live record lookups, synchronous batch runs and
// stored outcome queries.
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
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-retrieval-service/internal/database"
	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/repository"
)

// RecordSource looks up and maps a single registry record.
type RecordSource interface {
	FetchByID(ctx context.Context, pmid string) (*domain.Record, error)
}

// BatchRunner retrieves documents for a list of PMIDs.
type BatchRunner interface {
	Run(ctx context.Context, pmids []string) domain.BatchResult
}

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Dependencies are the collaborators behind the API routes. Records and
// Runner are required. A nil DB, RecordRepo or OutcomeRepo disables the
// features that need persistence; a nil Metrics handler removes /metrics.
type Dependencies struct {
	Records     RecordSource
	Runner      BatchRunner
	DB          HealthChecker
	RecordRepo  repository.RecordRepository
	OutcomeRepo repository.OutcomeRepository
	Metrics     http.Handler
}

// Server is the HTTP API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	records     RecordSource
	runner      BatchRunner
	db          HealthChecker
	recordRepo  repository.RecordRepository
	outcomeRepo repository.OutcomeRepository
	metrics     http.Handler
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	s := &Server{
		records:     deps.Records,
		runner:      deps.Runner,
		db:          deps.DB,
		recordRepo:  deps.RecordRepo,
		outcomeRepo: deps.OutcomeRepo,
		metrics:     deps.Metrics,
		logger:      logger.With().Str("component", "http-server").Logger(),
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

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))

	// Health checks and metrics.
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/records/{pmid}", s.getRecord)
		r.Get("/records/{pmid}/stored", s.getStoredRecord)
		r.Post("/retrievals", s.startRetrieval)
		r.Get("/outcomes/{pmid}", s.getLatestOutcome)
		r.Get("/runs/{runID}/outcomes", s.listRunOutcomes)
	})

	return r
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

// healthHandler reports liveness. The process is alive whenever it can answer.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports readiness, including the database when enabled.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ready",
			"database": "disabled",
		})
		return
	}

	health := s.db.Health(r.Context())
	if !health.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": health.Status,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
