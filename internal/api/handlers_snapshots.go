package api

import (
	"io"
	"net/http"

	"github.com/treasury-tracker/internal/types"
)

// CaptureRequest selects what a capture run should fetch. An empty body (or
// empty object) captures every configured asset.
type CaptureRequest struct {
	Asset  string `json:"asset,omitempty"`
	Merged bool   `json:"merged,omitempty"`
}

// handleCapture handles POST /api/snapshots/capture
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := parseJSONBody(r, &req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Asset != "" && req.Merged {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "asset and merged are mutually exclusive", nil)
		return
	}

	ctx := r.Context()

	switch {
	case req.Merged:
		snap, err := s.captureService.CaptureMerged(ctx)
		if err != nil {
			status, code, message := mapServiceError(err)
			respondError(w, status, code, message, nil)
			return
		}
		respondJSON(w, http.StatusCreated, snap)

	case req.Asset != "":
		snap, err := s.captureService.CaptureAsset(ctx, types.AssetID(req.Asset))
		if err != nil {
			status, code, message := mapServiceError(err)
			respondError(w, status, code, message, nil)
			return
		}
		if snap == nil {
			// Upstream returned an empty table; nothing was stored
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"captured": false,
				"asset":    req.Asset,
			})
			return
		}
		respondJSON(w, http.StatusCreated, snap)

	default:
		result, err := s.captureService.CaptureAll(ctx)
		if err != nil {
			status, code, message := mapServiceError(err)
			respondError(w, status, code, message, nil)
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// handleListSnapshots handles GET /api/snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.dashboardService.ListSnapshots(r.Context())
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": summaries,
		"count":     len(summaries),
	})
}

// handleLatestSnapshot handles GET /api/snapshots/latest?coin=<tag>
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	coin := types.CoinTag(r.URL.Query().Get("coin"))

	snap, err := s.dashboardService.LatestSnapshot(r.Context(), coin)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}
