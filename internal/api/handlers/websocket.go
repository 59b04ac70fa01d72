// Package handlers provides HTTP request handlers for the ragescanner API.
// This file implements the WebSocket endpoint that streams scan events
// (results, progress and terminal notifications) to connected clients.
package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/ragescanner/internal/api/middleware"
	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/logging"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
)

// EventSource hands out event subscriptions.
type EventSource interface {
	Subscribe() *bridge.Subscription
}

// WebSocketHandler streams bridge events over WebSocket connections.
// Every connection owns its own subscription, so a slow client only delays itself.
type WebSocketHandler struct {
	events   EventSource
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(events EventSource, logger *logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		events: events,
		logger: logger.WithComponent("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origins are policed by the CORS and authentication middleware
				return true
			},
		},
	}
}

// Events upgrades the connection and streams every scan event to it until
// either side closes.
// GET /api/v1/events
func (h *WebSocketHandler) Events(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	// Subscribe before the handshake completes so the client sees every
	// event published after its dial returns.
	sub := h.events.Subscribe()
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	h.logger.Info("Event stream opened",
		"request_id", requestID,
		"subscription", sub.ID(),
		"remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readPump(conn, requestID)
	}()

	h.writePump(conn, sub, done, requestID)

	if err := conn.Close(); err != nil {
		h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
	}
	<-done

	h.logger.Info("Event stream closed", "request_id", requestID, "subscription", sub.ID())
}

// readPump consumes control frames and detects when the peer goes away.
// Clients do not send commands over this socket.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, requestID string) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("Failed to set read deadline", "request_id", requestID, "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket unexpected close", "request_id", requestID, "error", err)
			}
			return
		}
	}
}

// writePump forwards subscription events and keeps the connection alive with pings.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, sub *bridge.Subscription, done <-chan struct{}, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-sub.C():
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.logger.Error("Failed to set write deadline", "request_id", requestID, "error", err)
				return
			}
			if !ok {
				// The bridge shut down
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "scanner shutting down"))
				return
			}

			msg := WebSocketMessage{
				Type:      string(ev.Type),
				Timestamp: ev.Timestamp,
				Data:      ev,
				RequestID: requestID,
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", requestID, "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.logger.Error("Failed to set write deadline", "request_id", requestID, "error", err)
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		}
	}
}
