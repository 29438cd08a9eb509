package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

const maxHistoryLimit = 200

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Items []core.Identification `json:"items"`
	Count int                   `json:"count"`
}

// handleListHistory lists recent identifications. ?q= runs a fuzzy search
// over plant names; ?limit= caps the result.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusNotFound, msgHistoryDisabled)
		return
	}
	log := s.logger.WithContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		items []core.Identification
		err   error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		items, err = s.history.Search(r.Context(), q, limit)
	} else {
		items, err = s.history.List(r.Context(), limit)
	}
	if err != nil {
		respondDomainError(w, log, err, "Failed to load history")
		return
	}
	if items == nil {
		items = []core.Identification{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{Items: items, Count: len(items)})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusNotFound, msgHistoryDisabled)
		return
	}

	rec, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, s.logger.WithContext(r.Context()), err, "Failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
