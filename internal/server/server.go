// Package server exposes the reconciliation engine over HTTP: batch
// ingestion, run triggering, match listings and the discrepancy report.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"payment-reconciliation-engine/internal/ingest"
	"payment-reconciliation-engine/internal/matcher"
	"payment-reconciliation-engine/internal/reconciler"
	"payment-reconciliation-engine/internal/reporter"
	"payment-reconciliation-engine/internal/store"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

const serviceName = "payment-reconciliation-engine"

// Server wires the store, reconciler, reporter and ingestion service behind
// an HTTP API. It is safe for concurrent requests; a reconcile run executes
// within its request.
type Server struct {
	store      store.Store
	reconciler *reconciler.Reconciler
	reporter   *reporter.Reporter
	ingest     *ingest.Service
	router     *mux.Router
	logger     logger.Logger
	version    string
}

// New builds a Server around the given store and matching configuration.
// A nil configuration uses the defaults.
func New(st store.Store, cfg *matcher.MatchingConfig, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:      st,
		reconciler: reconciler.New(st, cfg),
		reporter:   reporter.NewReporter(st, cfg),
		ingest:     ingest.NewService(st),
		router:     mux.NewRouter(),
		logger:     logger.GetGlobalLogger().WithComponent("server"),
		version:    version,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reconcile", s.handleReconcile).Methods(http.MethodPost)
	api.HandleFunc("/reconcile/status", s.handleReconcileStatus).Methods(http.MethodGet)
	api.HandleFunc("/matches", s.handleListMatches).Methods(http.MethodGet)
	api.HandleFunc("/matches/{transaction_id}", s.handleMatchByTransaction).Methods(http.MethodGet)
	api.HandleFunc("/discrepancies", s.handleDiscrepancies).Methods(http.MethodGet)
	api.HandleFunc("/discrepancies/summary", s.handleDiscrepancySummary).Methods(http.MethodGet)
	api.HandleFunc("/ingest/transactions", s.handleIngestTransactions).Methods(http.MethodPost)
	api.HandleFunc("/ingest/settlements", s.handleIngestSettlements).Methods(http.MethodPost)
	api.HandleFunc("/ingest/adjustments", s.handleIngestAdjustments).Methods(http.MethodPost)
}

// --- Middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.WithFields(logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("Request handled")
	})
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		logger.GetGlobalLogger().WithComponent("server").WithError(err).Error("Failed to encode response")
	}
}

// writeError renders any error as a JSON error envelope with the status code
// its category and code map to. Errors outside the EngineError chain come
// back as opaque 500s.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	engineErr, ok := apperrors.AsEngineError(err)
	if !ok {
		engineErr = apperrors.InternalError(apperrors.CodeUnexpectedError, "request", err)
	}

	status := engineErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logger.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
	}

	writeJSON(w, status, map[string]interface{}{"error": engineErr})
}
