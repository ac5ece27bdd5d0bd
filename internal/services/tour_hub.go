package services

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Event names emitted to tour rooms
const (
	EventTourStarted       = "tour-started"
	EventTourStatusUpdated = "tour-status-updated"
	EventVisitUpdated      = "visit-updated"
	EventVisitRequeued     = "visit-requeued"
	EventFamiliesReordered = "families-reordered"
	EventFamilyAdded       = "family-added"
	EventFamilyUpdated     = "family-updated"
	EventFamilyRemoved     = "family-removed"
	EventSantaLocation     = "santa-location"
	EventError             = "error"
)

// clientBuffer is the number of outbound frames queued per connection
const clientBuffer = 64

// ClientMessage is a frame sent by a websocket client
type ClientMessage struct {
	Type   string `json:"type"`
	TourID string `json:"tour_id"`
}

// Envelope is a frame sent to websocket clients
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one websocket connection as seen by the hub. Frames queued on
// Send are written in order by a single writer goroutine.
type Client struct {
	ID   string
	send chan []byte

	rooms  map[string]struct{}
	closed bool
}

// NewClient creates a client with a bounded outbound queue
func NewClient(id string) *Client {
	return &Client{
		ID:    id,
		send:  make(chan []byte, clientBuffer),
		rooms: make(map[string]struct{}),
	}
}

// Send returns the outbound queue; it is closed when the client is removed
func (c *Client) Send() <-chan []byte {
	return c.send
}

// TourHub fans events out to the clients joined to each tour room
type TourHub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

// NewTourHub creates a new tour hub
func NewTourHub() *TourHub {
	return &TourHub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// RoomName returns the room name of a tour
func RoomName(tourID string) string {
	return "tour-" + tourID
}

// Join adds the client to the room of a tour
func (h *TourHub) Join(c *Client, tourID string) {
	room := RoomName(tourID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes the client from the room of a tour
func (h *TourHub) Leave(c *Client, tourID string) {
	room := RoomName(tourID)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(c, room)
}

func (h *TourHub) leave(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Remove drops the client from every room and closes its outbound queue
func (h *TourHub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	for room := range c.rooms {
		h.leave(c, room)
	}
	c.closed = true
	close(c.send)
}

// RoomSize returns the number of clients in the room of a tour
func (h *TourHub) RoomSize(tourID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[RoomName(tourID)])
}

// Emit sends an event to every client in the room of a tour. The hub lock is
// held for the whole fan-out so concurrent emits reach all clients in the same
// order. A client whose queue is full misses the event.
func (h *TourHub) Emit(tourID, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	room := RoomName(tourID)

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			log.Warn().
				Str("client_id", c.ID).
				Str("room", room).
				Str("event", event).
				Msg("Client queue full, dropping event")
		}
	}
}

// SendTo queues an event for a single client, dropping it when the queue is full
func (h *TourHub) SendTo(c *Client, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("client_id", c.ID).Str("event", event).Msg("Client queue full, dropping event")
	}
}
