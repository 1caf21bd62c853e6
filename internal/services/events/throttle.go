package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/models"
)

// ProgressThrottle coalesces progress events per request before they reach a slow consumer.
// Triggers occur:
// - Every interval for requests with a pending event (only the latest is sent)
// - Immediately for stages listed as immediate (chunk verdicts, completion, failure)
type ProgressThrottle struct {
	mu        sync.Mutex
	interval  time.Duration
	immediate map[string]bool

	pending  map[string]models.ProgressEvent // request_id -> latest unsent event
	lastSent map[string]time.Time

	onSend func(ctx context.Context, event models.ProgressEvent)
	now    func() time.Time

	logger arbor.ILogger
}

// NewProgressThrottle creates a throttle; interval <= 0 forwards every event
func NewProgressThrottle(
	interval time.Duration,
	immediateStages []string,
	onSend func(ctx context.Context, event models.ProgressEvent),
	logger arbor.ILogger,
) *ProgressThrottle {
	immediate := make(map[string]bool, len(immediateStages))
	for _, stage := range immediateStages {
		immediate[stage] = true
	}
	return &ProgressThrottle{
		interval:  interval,
		immediate: immediate,
		pending:   make(map[string]models.ProgressEvent),
		lastSent:  make(map[string]time.Time),
		onSend:    onSend,
		now:       time.Now,
		logger:    logger,
	}
}

// Record forwards the event now or holds it until the next flush
func (t *ProgressThrottle) Record(ctx context.Context, event models.ProgressEvent) {
	t.mu.Lock()
	now := t.now()
	last, seen := t.lastSent[event.RequestID]
	due := t.interval <= 0 || !seen || now.Sub(last) >= t.interval

	if !due && !t.immediate[event.Stage] {
		t.pending[event.RequestID] = event
		t.mu.Unlock()
		return
	}

	// A held event older than this one is superseded
	delete(t.pending, event.RequestID)
	t.lastSent[event.RequestID] = now
	t.mu.Unlock()

	t.safeSend(ctx, event)
}

// Flush sends every held event and returns how many were sent
func (t *ProgressThrottle) Flush(ctx context.Context) int {
	t.mu.Lock()
	events := make([]models.ProgressEvent, 0, len(t.pending))
	now := t.now()
	for requestID, event := range t.pending {
		events = append(events, event)
		t.lastSent[requestID] = now
		delete(t.pending, requestID)
	}
	t.mu.Unlock()

	for _, event := range events {
		t.safeSend(ctx, event)
	}
	return len(events)
}

// Forget drops tracking for a finished request
func (t *ProgressThrottle) Forget(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, requestID)
	delete(t.lastSent, requestID)
}

// StartPeriodicFlush flushes held events every interval until ctx is done
func (t *ProgressThrottle) StartPeriodicFlush(ctx context.Context) {
	if t.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.Flush(context.Background())
				return
			case <-ticker.C:
				t.Flush(ctx)
			}
		}
	}()
}

func (t *ProgressThrottle) safeSend(ctx context.Context, event models.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("request_id", event.RequestID).
				Msg("PANIC in progress throttle send - recovered")
		}
	}()
	t.onSend(ctx, event)
}
