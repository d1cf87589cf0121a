package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/roach88/nxcoord/internal/claim"
)

// maxClaimBody caps the claim request body.
const maxClaimBody = 64 << 10

// claimResponse keeps the original route's proceed/message fields alongside
// the full verdict.
type claimResponse struct {
	Proceed   bool   `json:"proceed"`
	Acquired  bool   `json:"acquired"`
	ClaimedBy string `json:"claimedBy,omitempty"`
	ClaimedAt int64  `json:"claimedAt,omitempty"`
	Message   string `json:"message,omitempty"`
}

type attemptsResponse struct {
	Attempts []claim.AttemptRecord `json:"attempts"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claim.ClaimRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClaimBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, claim.NewValidationError("invalid JSON body"))
		return
	}

	verdict, err := s.arbiter.AttemptClaim(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Proceed:   verdict.Acquired,
		Acquired:  verdict.Acquired,
		ClaimedBy: verdict.ClaimedBy,
		ClaimedAt: verdict.ClaimedAt,
		Message:   verdict.Message(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.queries.Health(r.Context())
	status := http.StatusOK
	if h.Status != claim.StatusHealthy {
		s.logger.Error("health check failed", "error", h.Error)
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.queries.AttemptsForCommit(r.Context(), r.URL.Query().Get("gitSha"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptsResponse{Attempts: recs})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	rq, err := parseRecentQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.queries.Recent(r.Context(), rq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseRecentQuery reads project, task, wasGranted, gitShaPrefix, cursor and
// limit from the query string.
func parseRecentQuery(r *http.Request) (claim.RecentQuery, error) {
	q := r.URL.Query()
	rq := claim.RecentQuery{
		Filter: claim.RecentFilter{
			Project:      q.Get("project"),
			Task:         q.Get("task"),
			GitShaPrefix: q.Get("gitShaPrefix"),
		},
		Cursor: q.Get("cursor"),
	}

	if v := q.Get("wasGranted"); v != "" {
		granted, err := strconv.ParseBool(v)
		if err != nil {
			return claim.RecentQuery{}, claim.NewValidationError("wasGranted must be true or false", "wasGranted")
		}
		rq.Filter.WasGranted = &granted
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return claim.RecentQuery{}, claim.NewValidationError("limit must be an integer", "limit")
		}
		rq.Limit = limit
	}
	return rq, nil
}
