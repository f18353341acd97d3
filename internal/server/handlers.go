package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/claude/anchor/internal/engine"
	"github.com/claude/anchor/internal/ingest"
	"github.com/claude/anchor/internal/motion"
	"github.com/claude/anchor/internal/session"
)

func (s *Server) handleMotionIngest(w http.ResponseWriter, r *http.Request) {
	var payload ingest.MotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := s.ingest.IngestMotion(r.Context(), &payload)
	if err != nil {
		if errors.Is(err, motion.ErrUnavailable) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVisibilityIngest(w http.ResponseWriter, r *http.Request) {
	var payload ingest.VisibilityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := s.ingest.IngestVisibility(r.Context(), &payload)
	if err != nil {
		s.log.Error("visibility ingest error", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// startRequest is the body of a session start. Duration is raw user input
// in minutes; DurationSeconds is used when Duration is empty.
type startRequest struct {
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"duration_seconds"`
	SessionType     string `json:"session_type"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}

	seconds := s.defaultDuration
	switch {
	case req.Duration != "":
		seconds = session.ParseDurationMinutes(req.Duration)
	case req.DurationSeconds > 0:
		seconds = session.ClampDuration(req.DurationSeconds)
	}

	state, err := s.sessions.Start(r.Context(), seconds, req.SessionType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.sessions.Snapshot)
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.sessions.Cancel)
}

func (s *Server) handleSessionGiveUp(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.sessions.GiveUp)
}

func (s *Server) handleSessionAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.sessionCommand(w, r, s.sessions.Acknowledge)
}

func (s *Server) sessionCommand(w http.ResponseWriter, r *http.Request, fn func(context.Context) (session.State, error)) {
	state, err := fn(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, s.ledger.History(limit))
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Rank())
}

func (s *Server) handleGoalToday(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.GoalProgress())
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Weekly())
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotIdle),
		errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrNotWarning),
		errors.Is(err, session.ErrNotTerminal):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrStopped),
		errors.Is(err, motion.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
