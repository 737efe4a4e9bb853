// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 9:05:12 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"golang.org/x/time/rate"
)

const (
	subscriberName = "websocket"
	writeTimeout   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// HelloPayload is sent once per connection. Clients compare the instance ID
// to detect a server restart.
type HelloPayload struct {
	ServerInstanceID string `json:"server_instance_id"`
	Version          string `json:"version"`
}

// WebSocketHandler streams ingestion progress to connected clients
type WebSocketHandler struct {
	logger            arbor.ILogger
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	eventService      interfaces.EventService
	embeddedThrottler *rate.Limiter // nil = no throttling
	serverInstanceID  string
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && config.ThrottleWindow != "" {
		if window, err := time.ParseDuration(config.ThrottleWindow); err == nil && window > 0 {
			h.embeddedThrottler = rate.NewLimiter(rate.Every(window), 1)
			logger.Debug().
				Str("event_type", "embedded").
				Str("interval", config.ThrottleWindow).
				Msg("Throttler initialized for embedded events")
		} else {
			logger.Warn().
				Err(err).
				Str("interval", config.ThrottleWindow).
				Msg("Failed to parse embedded throttle interval - throttler disabled")
		}
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// SubscribeToIngestionEvents registers the handler with the event service
func (h *WebSocketHandler) SubscribeToIngestionEvents() error {
	if h.eventService == nil {
		return nil
	}
	return h.eventService.Subscribe(subscriberName, h.HandleEvent)
}

// HandleEvent broadcasts one ingestion event. Intermediate "embedded" progress
// is throttled; the final batch of a document always goes out.
func (h *WebSocketHandler) HandleEvent(event models.IngestionEvent) error {
	if event.Stage == "embedded" && h.embeddedThrottler != nil && !isFinalProgress(event) {
		if !h.embeddedThrottler.Allow() {
			return nil
		}
	}

	h.broadcast(WSMessage{Type: "ingestion", Payload: event})
	return nil
}

func isFinalProgress(event models.IngestionEvent) bool {
	embedded, ok1 := event.Details["embedded"].(int)
	total, ok2 := event.Details["total"].(int)
	return ok1 && ok2 && embedded >= total
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	mutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.send(conn, mutex, WSMessage{
		Type:    "hello",
		Payload: HelloPayload{ServerInstanceID: h.serverInstanceID, Version: common.GetVersion()},
	})

	// Handle client disconnection
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from events and disconnects every client
func (h *WebSocketHandler) Close() {
	if h.eventService != nil {
		h.eventService.Unsubscribe(subscriberName)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// broadcast sends msg to all connected clients
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		h.send(conn, mutexes[i], msg)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, mutex *sync.Mutex, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	mutex.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()

	if err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
	}
}
