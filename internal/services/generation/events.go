package generation

import (
	"context"
	"time"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
)

// Pipeline stages reported in progress events
const (
	StagePlanning     = "PLANNING"
	StageOutline      = "OUTLINE"
	StageContentPlan  = "CONTENT_PLAN"
	StageGenerating   = "GENERATING"
	StageValidating   = "VALIDATING"
	StageExpanding    = "EXPANDING"
	StageRegenerating = "REGENERATING"
	StageAccepted     = "ACCEPTED"
	StageRejected     = "REJECTED"
	StageStitched     = "STITCHED"
	StageGateCheck    = "GATE_CHECK"
	StageComplete     = "COMPLETE"
	StageFailed       = "FAILED"
)

// stageForChunkState maps chunk machine states onto pipeline stages
func stageForChunkState(state models.ChunkState) string {
	switch state {
	case models.ChunkGenerated:
		return StageValidating
	case models.ChunkExpandingTier1, models.ChunkExpandingTier2:
		return StageExpanding
	case models.ChunkRegenerating:
		return StageRegenerating
	case models.ChunkAccepted:
		return StageAccepted
	case models.ChunkRejected:
		return StageRejected
	}
	return StageGenerating
}

// ProgressFunc receives progress events for a single request
type ProgressFunc func(event models.ProgressEvent)

type progressReporter struct {
	events    interfaces.EventService
	callback  ProgressFunc
	requestID string
	userID    string
}

func (p *progressReporter) emit(ctx context.Context, stage string, chunk int, state models.ChunkState, message string, data map[string]interface{}) {
	event := models.ProgressEvent{
		RequestID:  p.requestID,
		UserID:     p.userID,
		Stage:      stage,
		ChunkIndex: chunk,
		ChunkState: state,
		Message:    message,
		Data:       data,
		Timestamp:  time.Now(),
	}
	if p.callback != nil {
		p.callback(event)
	}
	if p.events != nil {
		_ = p.events.Publish(context.WithoutCancel(ctx), interfaces.Event{
			Type:    interfaces.EventGenerationProgress,
			Payload: event,
		})
	}
}
