package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
)

// RunMessage is the wire form of a finished generation run
type RunMessage struct {
	RequestID      string    `json:"request_id"`
	UserID         string    `json:"user_id"`
	Topic          string    `json:"topic"`
	Status         string    `json:"status"`
	ScriptID       string    `json:"script_id,omitempty"`
	CreditsDebited int       `json:"credits_debited"`
	WordRatio      float64   `json:"word_ratio,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	ErrorCheck     string    `json:"error_check,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewRunMessage flattens a run for external consumers
func NewRunMessage(run *models.GenerationRun) RunMessage {
	msg := RunMessage{
		RequestID:      run.ID,
		UserID:         run.UserID,
		Topic:          run.Topic,
		Status:         string(run.Status),
		ScriptID:       run.ScriptID,
		CreditsDebited: run.CreditsDebited,
		ErrorKind:      run.ErrorKind,
		ErrorCheck:     run.ErrorCheck,
		CompletedAt:    run.CompletedAt,
	}
	if run.Verdict != nil {
		msg.WordRatio = run.Verdict.WordRatio
	}
	return msg
}

// Bridge forwards terminal generation events from the event bus to a Publisher
type Bridge struct {
	publisher interfaces.Publisher
	prefix    string
	logger    arbor.ILogger
}

// NewBridge builds a bridge publishing on <prefix>.completed and <prefix>.failed
func NewBridge(publisher interfaces.Publisher, prefix string, logger arbor.ILogger) *Bridge {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = "longform.scripts"
	}
	return &Bridge{publisher: publisher, prefix: prefix, logger: logger}
}

// Subject returns the subject for a run status
func (b *Bridge) Subject(status models.RunStatus) string {
	if status == models.RunComplete {
		return b.prefix + ".completed"
	}
	return b.prefix + ".failed"
}

// Attach subscribes the bridge to completed and failed events
func (b *Bridge) Attach(eventService interfaces.EventService) error {
	for _, eventType := range []interfaces.EventType{
		interfaces.EventGenerationCompleted,
		interfaces.EventGenerationFailed,
	} {
		if err := eventService.Subscribe(eventType, b.handle); err != nil {
			return fmt.Errorf("failed to subscribe bridge to %s: %w", eventType, err)
		}
	}
	return nil
}

func (b *Bridge) handle(ctx context.Context, event interfaces.Event) error {
	var run *models.GenerationRun
	switch payload := event.Payload.(type) {
	case *models.GenerationRun:
		run = payload
	case models.GenerationRun:
		run = &payload
	}
	if run == nil {
		return nil
	}

	subject := b.Subject(run.Status)
	if err := b.publisher.Publish(ctx, subject, NewRunMessage(run)); err != nil {
		b.logger.Warn().
			Err(err).
			Str("subject", subject).
			Str("request_id", run.ID).
			Msg("Failed to publish run message")
		return err
	}
	return nil
}
