package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/claude/anchor/internal/models"
	"github.com/claude/anchor/internal/storage"
)

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := storage.QueryImportLogs(r.Context(), s.store, limit)
	if err != nil {
		s.log.Error("querying import logs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleSetDailyGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	stats, err := s.ledger.SetDailyGoal(r.Context(), req.Minutes)
	s.writeStats(w, stats, err)
}

type sessionTypeRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddSessionType(w http.ResponseWriter, r *http.Request) {
	var req sessionTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	stats, err := s.ledger.AddCustomSessionType(r.Context(), req.Name)
	s.writeStats(w, stats, err)
}

// handleRemoveSessionType takes the name from the "name" query parameter,
// falling back to a JSON body.
func (s *Server) handleRemoveSessionType(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		var req sessionTypeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
			return
		}
		name = req.Name
	}
	stats, err := s.ledger.RemoveCustomSessionType(r.Context(), name)
	s.writeStats(w, stats, err)
}

func (s *Server) handleToggleStrictMode(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.ToggleStrictMode(r.Context())
	s.writeStats(w, stats, err)
}

// writeStats reports a settings mutation. The update is applied in memory
// even when persisting it failed, so the error is reported alongside it.
func (s *Server) writeStats(w http.ResponseWriter, stats models.UserStats, err error) {
	if err != nil {
		s.log.Error("saving settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "stats": stats})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
