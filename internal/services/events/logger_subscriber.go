package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs generation events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		switch payload := event.Payload.(type) {
		case models.ProgressEvent:
			logger.Debug().
				Str("event_type", string(event.Type)).
				Str("request_id", payload.RequestID).
				Str("stage", payload.Stage).
				Int("chunk", payload.ChunkIndex).
				Str("chunk_state", string(payload.ChunkState)).
				Msg("Generation progress")
		case *models.GenerationRun:
			logRun(logger, event.Type, payload)
		case models.GenerationRun:
			logRun(logger, event.Type, &payload)
		default:
			logger.Debug().
				Str("event_type", string(event.Type)).
				Msg("Event published")
		}
		return nil
	}
}

func logRun(logger arbor.ILogger, eventType interfaces.EventType, run *models.GenerationRun) {
	if run == nil {
		return
	}
	logEvent := logger.Info()
	if run.Status == models.RunFailed {
		logEvent = logger.Warn().
			Str("error_kind", run.ErrorKind).
			Str("error_check", run.ErrorCheck)
	}
	logEvent.
		Str("event_type", string(eventType)).
		Str("request_id", run.ID).
		Str("user_id", run.UserID).
		Str("status", string(run.Status)).
		Int("credits_debited", run.CreditsDebited).
		Int("llm_calls", run.LLMCalls).
		Msg("Generation run finished")
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventGenerationProgress,
		interfaces.EventGenerationCompleted,
		interfaces.EventGenerationFailed,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
