package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/models"
)

func newTestThrottle(clock *time.Time) (*ProgressThrottle, *[]models.ProgressEvent) {
	var sent []models.ProgressEvent
	throttle := NewProgressThrottle(time.Second, []string{"COMPLETE"}, func(ctx context.Context, event models.ProgressEvent) {
		sent = append(sent, event)
	}, arbor.NewLogger())
	throttle.now = func() time.Time { return *clock }
	return throttle, &sent
}

func TestProgressThrottle_CoalescesWithinInterval(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle, sent := newTestThrottle(&clock)
	ctx := context.Background()

	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "PLANNING"})
	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "GENERATING", ChunkIndex: 1})
	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "VALIDATING", ChunkIndex: 1})

	assert.Len(t, *sent, 1)

	assert.Equal(t, 1, throttle.Flush(ctx))
	assert.Len(t, *sent, 2)
	assert.Equal(t, "VALIDATING", (*sent)[1].Stage, "only the latest held event is sent")
	assert.Equal(t, 0, throttle.Flush(ctx))
}

func TestProgressThrottle_ImmediateStages(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle, sent := newTestThrottle(&clock)
	ctx := context.Background()

	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "PLANNING"})
	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "GENERATING"})
	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "COMPLETE"})

	assert.Len(t, *sent, 2)
	assert.Equal(t, "COMPLETE", (*sent)[1].Stage)
	assert.Equal(t, 0, throttle.Flush(ctx), "held event superseded by the immediate one")
}

func TestProgressThrottle_IntervalElapsed(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle, sent := newTestThrottle(&clock)
	ctx := context.Background()

	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "PLANNING"})
	clock = clock.Add(2 * time.Second)
	throttle.Record(ctx, models.ProgressEvent{RequestID: "r1", Stage: "GENERATING"})
	throttle.Record(ctx, models.ProgressEvent{RequestID: "r2", Stage: "PLANNING"})

	assert.Len(t, *sent, 3)
}
