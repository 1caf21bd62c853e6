package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/generation"
)

// ScriptGenerator is the pipeline surface the HTTP layer needs
type ScriptGenerator interface {
	Generate(ctx context.Context, req *generation.Request) (*generation.Result, error)
	Estimate(durationSeconds int, tier models.ModelTier) (models.CreditCost, error)
}

// ScriptHandler serves script generation, estimation and retrieval
type ScriptHandler struct {
	generator ScriptGenerator
	scripts   interfaces.ScriptStorage
	logger    arbor.ILogger
}

func NewScriptHandler(generator ScriptGenerator, scripts interfaces.ScriptStorage, logger arbor.ILogger) *ScriptHandler {
	return &ScriptHandler{
		generator: generator,
		scripts:   scripts,
		logger:    logger,
	}
}

// EstimateRequest is the body of POST /api/scripts/estimate
type EstimateRequest struct {
	DurationSeconds int              `json:"duration_seconds"`
	ModelTier       models.ModelTier `json:"model_tier"`
}

// GenerateHandler runs the pipeline synchronously: POST /api/scripts/generate.
// The Idempotency-Key header, when present, is scoped to the brief's user and becomes
// the request ID; replaying a completed or billed request is rejected with 409.
func (h *ScriptHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var brief models.ContentBrief
	if err := DecodeJSON(r, &brief); err != nil {
		WritePipelineError(w, generation.InputError("body", "invalid request body", err.Error()))
		return
	}

	result, err := h.generator.Generate(r.Context(), &generation.Request{
		Brief:     brief,
		RequestID: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// EstimateHandler prices a generation without running it: POST /api/scripts/estimate
func (h *ScriptHandler) EstimateHandler(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := DecodeJSON(r, &req); err != nil {
		WritePipelineError(w, generation.InputError("body", "invalid request body", err.Error()))
		return
	}

	cost, err := h.generator.Estimate(req.DurationSeconds, req.ModelTier)
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, cost)
}

// ListHandler lists script summaries: GET /api/scripts?user=&limit=&offset=
func (h *ScriptHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	limit, offset := GetLimitOffset(r)

	records, err := h.scripts.ListScripts(r.Context(), &interfaces.ScriptListOptions{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list scripts")
		WriteError(w, http.StatusInternalServerError, "Failed to list scripts")
		return
	}

	total, err := h.scripts.CountScripts(r.Context(), userID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count scripts")
		total = len(records)
	}

	summaries := make([]models.ScriptSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.Summary())
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scripts": summaries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetHandler returns one script: GET /api/scripts/{id}
func (h *ScriptHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "script id is required")
		return
	}

	record, err := h.scripts.GetScript(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrScriptNotFound) {
			WriteError(w, http.StatusNotFound, "script not found")
			return
		}
		h.logger.Error().Err(err).Str("script_id", id).Msg("Failed to load script")
		WriteError(w, http.StatusInternalServerError, "Failed to load script")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
