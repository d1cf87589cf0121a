// Package httpapi exposes the claim arbiter and its read queries over HTTP.
//
// Routes:
//
//	POST /api/claim            admit or deny one claim attempt
//	GET  /api/health           store connectivity
//	GET  /api/attempts         attempts for ?gitSha=, newest first
//	GET  /api/attempts/recent  paginated log with post-page filters
//	GET  /api/stats            aggregate statistics
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/nxcoord/internal/claim"
)

// Response bodies for failures that must not leak internals.
const (
	msgConfiguration = "Server configuration error"
	msgInternal      = "Internal server error"
)

// Server routes HTTP requests to the arbiter and queries.
type Server struct {
	arbiter *claim.Arbiter
	queries *claim.Queries
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a Server. A nil logger uses slog.Default().
func New(arbiter *claim.Arbiter, queries *claim.Queries, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		arbiter: arbiter,
		queries: queries,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/claim", s.handleClaim)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/attempts", s.handleAttempts)
	s.mux.HandleFunc("GET /api/attempts/recent", s.handleRecent)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Validation messages are returned
// verbatim; configuration and store failures are logged and masked.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *claim.Error
	switch {
	case claim.IsValidation(err):
		body := errorBody{Error: err.Error()}
		if errors.As(err, &ce) {
			body = errorBody{Error: ce.Message, Fields: ce.Fields}
		}
		writeJSON(w, http.StatusBadRequest, body)
	case claim.IsConfiguration(err):
		s.logger.Error("configuration error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgConfiguration})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgInternal})
	}
}
