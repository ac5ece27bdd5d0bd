package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"santa-tracker-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client message types
const (
	msgJoinTour  = "join-tour"
	msgLeaveTour = "leave-tour"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // tour rooms are public
	},
}

// WebSocketHandler connects viewers and guides to tour rooms
type WebSocketHandler struct {
	hub *services.TourHub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.TourHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := services.NewClient(uuid.New().String())
	log.Info().Str("client_id", client.ID).Msg("WebSocket connection established")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, client)
	}()

	h.readPump(conn, client)

	h.hub.Remove(client)
	<-done
	_ = conn.Close()

	log.Info().Str("client_id", client.ID).Msg("WebSocket connection closed")
}

// readPump handles room membership frames until the connection fails
func (h *WebSocketHandler) readPump(conn *websocket.Conn, client *services.Client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			return
		}

		var msg services.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, "Invalid message format")
			continue
		}
		h.handleMessage(client, msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *services.Client, msg services.ClientMessage) {
	tourID := strings.TrimSpace(msg.TourID)

	switch msg.Type {
	case msgJoinTour, msgLeaveTour:
		if tourID == "" {
			h.sendError(client, "tour_id is required")
			return
		}
	default:
		h.sendError(client, "Unknown message type")
		return
	}

	action := "Client joined tour room"
	if msg.Type == msgJoinTour {
		h.hub.Join(client, tourID)
	} else {
		h.hub.Leave(client, tourID)
		action = "Client left tour room"
	}
	log.Debug().
		Str("client_id", client.ID).
		Str("tour_id", tourID).
		Int("viewers", h.hub.RoomSize(tourID)).
		Msg(action)
}

// writePump is the only writer of the connection
func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *services.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("client_id", client.ID).Msg("Failed to write frame")
				// unblock readPump so the client gets removed
				_ = conn.Close()
				drain(client)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				drain(client)
				return
			}
		}
	}
}

// drain discards frames until the hub closes the queue
func drain(client *services.Client) {
	for range client.Send() {
	}
}

func (h *WebSocketHandler) sendError(client *services.Client, message string) {
	h.hub.SendTo(client, services.EventError, map[string]string{"message": message})
}
