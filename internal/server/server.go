package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/king0079z/Tender-Tracker-60/internal/connection"
	"github.com/king0079z/Tender-Tracker-60/internal/database"
	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
)

// Backend is the connection manager surface the handlers need.
type Backend interface {
	HealthReport(ctx context.Context) protocol.HealthReport
	Execute(ctx context.Context, text string, params []any) (*protocol.QueryResult, error)
	Stats() connection.ManagerStats
}

// Config holds HTTP handler configuration.
type Config struct {
	Development    bool          // Enables CORS and error detail in responses
	StaticDir      string        // SPA build output, empty disables static serving
	RequestTimeout time.Duration // Bound on backend calls per request
	MaxBodyBytes   int64         // Query request body limit
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

// Server serves the tracker HTTP API.
type Server struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	handler http.Handler
}

// New creates a new Server.
func New(cfg Config, backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With("component", "server"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+protocol.HealthPath, s.handleHealth)
	mux.HandleFunc("GET "+protocol.LegacyHealthPath, s.handleHealth)
	mux.HandleFunc("POST "+protocol.QueryPath, s.handleQuery)
	mux.HandleFunc("POST "+protocol.LegacyQueryPath, s.handleQuery)
	mux.HandleFunc("GET "+protocol.StatsPath, s.handleStats)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, protocol.ErrorResponse{Error: true, Message: "Not found"})
	})

	if s.cfg.StaticDir != "" {
		mux.Handle("/", newSPAHandler(s.cfg.StaticDir))
	}

	var h http.Handler = mux
	if s.cfg.Development {
		h = cors(h)
	}
	h = s.logRequests(h)
	h = requestID(h)
	return h
}

// handleHealth reports database connectivity. The status code follows the
// database state alone.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("health report failed", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, protocol.HealthFailure{
				Status:    protocol.StatusError,
				Error:     fmt.Sprint(rec),
				Timestamp: time.Now().UTC(),
			})
		}
	}()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	report := s.backend.HealthReport(ctx)

	status := http.StatusOK
	if report.Database != protocol.DatabaseConnected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req protocol.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: true, Message: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: true, Message: "Query text is required"})
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.backend.Execute(ctx, req.Text, req.Params)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeQueryError maps an execution failure to a response. Failures the
// client should retry get a 503; statement errors get a 500.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	resp := protocol.ErrorResponse{Error: true, Code: database.ErrorCode(err)}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, connection.ErrNotInitialized):
		status = http.StatusServiceUnavailable
		resp.Message = "Database not initialized"
	case errors.Is(err, connection.ErrNotConnected):
		status = http.StatusServiceUnavailable
		resp.Message = "Database not connected"
	case database.IsConnectionError(err):
		status = http.StatusServiceUnavailable
		resp.Message = "Database connection lost"
	default:
		resp.Message = err.Error()
	}

	if s.cfg.Development {
		resp.Detail = database.ErrorDetail(err)
	}

	s.logger.Warn("query failed",
		"status", status,
		"code", resp.Code,
		"error", err,
		"request_id", RequestID(r.Context()),
	)
	writeJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Stats())
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
