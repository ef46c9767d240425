package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aivet-io/aivet/internal/requestctx"
	"github.com/aivet-io/aivet/internal/run"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	}
	if s.audit == nil {
		resp["audit"] = "disabled"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req run.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Identity = requestctx.Identity(r.Context())

	out, err := s.coordinator.Assess(r.Context(), req)
	if err != nil {
		if errors.Is(err, run.ErrTooManyRequests) {
			writeError(w, http.StatusTooManyRequests, "concurrent run limit reached")
			return
		}
		log.Error().Err(err).Msg("assessment_failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The run's terminal state, not transport, decides the status code:
	// rejections are well-formed responses, not server errors.
	status := http.StatusOK
	switch out.State {
	case run.StateRejected:
		status = http.StatusUnprocessableEntity
	case run.StateFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}
	b := s.budgets.Snapshot(sessionID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    b.SessionID,
		"searches_used": b.SearchesUsed,
		"search_limit":  b.SearchLimit,
		"tokens_used":   b.TokensUsed,
		"token_limit":   b.TokenLimit,
		"deadline":      b.Deadline,
	})
}

func (s *Server) handleRunsList(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit trail disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}
	runs, err := s.audit.ListRuns(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("audit_list_failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleVerdictsList(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit trail disabled")
		return
	}
	runID := chi.URLParam(r, "id")
	verdicts, err := s.audit.ListVerdicts(r.Context(), runID)
	if err != nil {
		log.Error().Err(err).Msg("audit_list_failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": runID, "verdicts": verdicts})
}
