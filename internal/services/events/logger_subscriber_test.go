package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
)

func TestNewLoggerSubscriber(t *testing.T) {
	logger := arbor.NewLogger()
	subscriber := NewLoggerSubscriber(logger)
	ctx := context.Background()

	err := subscriber(ctx, interfaces.Event{
		Type: interfaces.EventGenerationProgress,
		Payload: models.ProgressEvent{
			RequestID: "req-1",
			Stage:     "GENERATING",
		},
	})
	assert.NoError(t, err)

	err = subscriber(ctx, interfaces.Event{
		Type:    interfaces.EventGenerationFailed,
		Payload: &models.GenerationRun{ID: "req-1", Status: models.RunFailed, ErrorKind: "quality"},
	})
	assert.NoError(t, err)

	err = subscriber(ctx, interfaces.Event{Type: interfaces.EventGenerationCompleted})
	assert.NoError(t, err)
}

func TestSubscribeLoggerToAllEvents(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := NewService(logger)
	defer eventService.Close()

	require.NoError(t, SubscribeLoggerToAllEvents(eventService, logger))

	svc := eventService.(*Service)
	for _, eventType := range []interfaces.EventType{
		interfaces.EventGenerationProgress,
		interfaces.EventGenerationCompleted,
		interfaces.EventGenerationFailed,
	} {
		assert.Len(t, svc.subscribers[eventType], 1, string(eventType))
	}
}

func TestService_PublishSync(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	defer eventService.Close()

	var mu sync.Mutex
	var received []string
	handler := func(ctx context.Context, event interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event.Payload.(string))
		return nil
	}
	require.NoError(t, eventService.Subscribe(interfaces.EventGenerationCompleted, handler))
	require.NoError(t, eventService.Subscribe(interfaces.EventGenerationCompleted, handler))

	err := eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventGenerationCompleted,
		Payload: "run-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-1"}, received)
}

func TestService_PublishAsync(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	defer eventService.Close()

	done := make(chan struct{})
	require.NoError(t, eventService.Subscribe(interfaces.EventGenerationFailed, func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}))

	require.NoError(t, eventService.Publish(context.Background(), interfaces.Event{Type: interfaces.EventGenerationFailed}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestService_SubscribeAfterClose(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	require.NoError(t, eventService.Close())

	err := eventService.Subscribe(interfaces.EventGenerationProgress, func(ctx context.Context, event interfaces.Event) error { return nil })
	assert.Error(t, err)
	assert.Error(t, eventService.Subscribe(interfaces.EventGenerationProgress, nil))
}
