package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"housing-chat-service/internal/models"
	"housing-chat-service/internal/observability"
	"housing-chat-service/internal/realtime"
)

// connWriter serializes writes to one websocket connection. Gorilla
// allows at most one concurrent writer per conn, and a conn sits in both
// its conversation room and the user's personal room, so overlapping
// publishes must share a lock. refs counts room memberships.
type connWriter struct {
	mu   sync.Mutex
	refs int
}

// Hub maintains active websocket rooms for this instance. It is the local
// delivery binding; cross-instance delivery rides the AMQP binding.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	writers  map[*websocket.Conn]*connWriter
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
		writers:  make(map[*websocket.Conn]*connWriter),
		log:      log,
	}
}

// Name identifies the binding in fan-out metrics and logs.
func (h *Hub) Name() string { return "websocket" }

// Join registers a websocket connection to a room.
func (h *Hub) Join(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	already := h.rooms[room][conn]
	h.rooms[room][conn] = true
	if _, ok := h.connInfo[room]; !ok {
		h.connInfo[room] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[room][conn] = info

	if !already {
		writer, ok := h.writers[conn]
		if !ok {
			writer = &connWriter{}
			h.writers[conn] = writer
		}
		writer.refs++
	}
}

// Leave removes a websocket connection from a room. Safe to call twice
// for the same membership.
func (h *Hub) Leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	present := false
	if conns, ok := h.rooms[room]; ok {
		_, present = conns[conn]
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	if infos, ok := h.connInfo[room]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, room)
		}
	}
	if present {
		if writer, ok := h.writers[conn]; ok {
			writer.refs--
			if writer.refs <= 0 {
				delete(h.writers, conn)
			}
		}
	}
}

// Publish sends the event to every connection in the room. A connection
// that fails its write is closed and dropped; the loop keeps going so one
// dead client never blocks the rest of the room.
func (h *Hub) Publish(ctx context.Context, room, event string, payload any) error {
	type target struct {
		conn   *websocket.Conn
		writer *connWriter
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		targets = append(targets, target{conn: conn, writer: h.writers[conn]})
	}
	h.mu.RUnlock()

	body, err := json.Marshal(realtime.Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	for _, t := range targets {
		conn := t.conn
		t.writer.mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, body)
		t.writer.mu.Unlock()
		if err != nil {
			h.log.Warn("websocket write failed", zap.String("room", room), zap.Error(err))
			conn.Close()
			h.Leave(room, conn)
			observability.IncWSEvent("ws_error")
		}
	}
	return nil
}

// UsersInRoom returns the distinct users currently connected to a room.
// The unread aggregator uses this to skip badge bumps for viewers who see
// the message arrive live.
func (h *Hub) UsersInRoom(room string) []models.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[models.UserID]struct{})
	users := make([]models.UserID, 0, len(h.connInfo[room]))
	for _, info := range h.connInfo[room] {
		if _, ok := seen[info.UserID]; ok {
			continue
		}
		seen[info.UserID] = struct{}{}
		users = append(users, info.UserID)
	}
	return users
}
