package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/events"
	"github.com/ternarybob/longform/internal/services/generation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const writeWait = 10 * time.Second

// immediateStages are never coalesced by the progress throttle
var immediateStages = []string{
	generation.StageAccepted,
	generation.StageRejected,
	generation.StageStitched,
	generation.StageComplete,
	generation.StageFailed,
}

// WSMessage is the envelope of every message sent to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsClient is one connection with its optional filters
type wsClient struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	requestID string
	userID    string
}

func (c *wsClient) wants(requestID, userID string) bool {
	if c.requestID != "" && c.requestID != requestID {
		return false
	}
	if c.userID != "" && c.userID != userID {
		return false
	}
	return true
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHandler streams generation progress to connected clients.
// Clients may filter with ?request_id= or ?user= on the upgrade URL.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]*wsClient
	mu               sync.RWMutex
	eventService     interfaces.EventService
	throttle         *events.ProgressThrottle
	allowedEvents    map[string]bool // Whitelist of stages to broadcast (empty = allow all)
	serverInstanceID string          // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]*wsClient),
		eventService:     eventService,
		allowedEvents:    make(map[string]bool),
		serverInstanceID: uuid.New().String(),
	}

	interval := time.Duration(0)
	if config != nil {
		for _, stage := range config.AllowedEvents {
			h.allowedEvents[stage] = true
		}
		interval = common.ParseDurationOr(config.Throttle, 0)
	}
	h.throttle = events.NewProgressThrottle(interval, immediateStages, h.broadcastProgress, logger)

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Int("allowed_events", len(h.allowedEvents)).
		Str("throttle", interval.String()).
		Msg("WebSocket handler initialized")

	return h
}

// Start subscribes to generation events and runs the throttle flush loop until ctx ends
func (h *WebSocketHandler) Start(ctx context.Context) error {
	h.throttle.StartPeriodicFlush(ctx)
	if h.eventService == nil {
		return nil
	}

	if err := h.eventService.Subscribe(interfaces.EventGenerationProgress, func(ctx context.Context, event interfaces.Event) error {
		if progress, ok := event.Payload.(models.ProgressEvent); ok {
			h.RecordProgress(ctx, progress)
		}
		return nil
	}); err != nil {
		return err
	}

	finished := func(ctx context.Context, event interfaces.Event) error {
		if run, ok := event.Payload.(*models.GenerationRun); ok && run != nil {
			h.throttle.Forget(run.ID)
			h.broadcast("run_finished", run.ID, run.UserID, map[string]interface{}{
				"request_id": run.ID,
				"status":     run.Status,
				"script_id":  run.ScriptID,
				"error_kind": run.ErrorKind,
			})
		}
		return nil
	}
	if err := h.eventService.Subscribe(interfaces.EventGenerationCompleted, finished); err != nil {
		return err
	}
	return h.eventService.Subscribe(interfaces.EventGenerationFailed, finished)
}

// RecordProgress passes a progress event through the whitelist and throttle
func (h *WebSocketHandler) RecordProgress(ctx context.Context, event models.ProgressEvent) {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[event.Stage] {
		return
	}
	h.throttle.Record(ctx, event)
}

func (h *WebSocketHandler) broadcastProgress(ctx context.Context, event models.ProgressEvent) {
	h.broadcast("progress", event.RequestID, event.UserID, event)
}

func (h *WebSocketHandler) broadcast(msgType, requestID, userID string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		if client.wants(requestID, userID) {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.write(data); err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send to websocket client")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and keeps it until the client leaves: GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{
		conn:      conn,
		requestID: r.URL.Query().Get("request_id"),
		userID:    r.URL.Query().Get("user"),
	}

	h.mu.Lock()
	h.clients[conn] = client
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	hello, _ := json.Marshal(WSMessage{Type: "hello", Payload: map[string]string{
		"server_instance_id": h.serverInstanceID,
		"version":            common.GetVersion(),
	}})
	if err := client.write(hello); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to greet websocket client")
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", remaining).Msg("WebSocket client disconnected")
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}
