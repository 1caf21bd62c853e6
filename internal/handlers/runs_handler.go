package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
)

// RunsHandler exposes the generation run audit trail
type RunsHandler struct {
	runs   interfaces.RunStorage
	logger arbor.ILogger
}

func NewRunsHandler(runs interfaces.RunStorage, logger arbor.ILogger) *RunsHandler {
	return &RunsHandler{runs: runs, logger: logger}
}

// ListHandler lists recent runs: GET /api/runs?user=&limit=
func (h *RunsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	limit, _ := GetLimitOffset(r)

	runs, err := h.runs.ListRuns(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetHandler returns one run: GET /api/runs/{id}
func (h *RunsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrRunNotFound) {
			WriteError(w, http.StatusNotFound, "run not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}
	WriteJSON(w, http.StatusOK, run)
}
