package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/treasury-tracker/internal/types"
)

// handleDashboard handles GET /api/assets/{asset}/dashboard?top=<n>
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	coin := types.CoinTag(vars["asset"])

	topN := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "top must be a positive integer", nil)
			return
		}
		topN = n
	}

	dashboard, err := s.dashboardService.GetDashboard(r.Context(), coin, topN)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}

// handleProjection handles GET /api/assets/{asset}/projection?pct=<factor>
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	coin := types.CoinTag(vars["asset"])

	raw := r.URL.Query().Get("pct")
	if raw == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "pct query parameter is required", nil)
		return
	}

	factor, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "pct must be a number", nil)
		return
	}

	projection, err := s.dashboardService.GetProjection(r.Context(), coin, factor)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, projection)
}

// handleHistory handles GET /api/assets/{asset}/history?from=<ts>&to=<ts>
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	coin := types.CoinTag(vars["asset"])

	from := time.Time{}
	to := time.Now().UTC()

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "from must be an RFC3339 timestamp", nil)
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "to must be an RFC3339 timestamp", nil)
			return
		}
		to = t
	}

	points, err := s.dashboardService.GetHistory(r.Context(), coin, from, to)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"coin":   coin,
		"points": points,
		"count":  len(points),
	})
}
