package ws

import (
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"housing-chat-service/internal/models"
)

func TestHubJoinAndLeave(t *testing.T) {
	hub := NewHub(zap.NewNop())

	hub.Join("conversation.1", nil, ConnInfo{UserID: 7})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room to be created")
	}

	hub.Leave("conversation.1", nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected room to be removed")
	}
}

func TestHubUsersInRoomDeduplicates(t *testing.T) {
	hub := NewHub(zap.NewNop())

	hub.Join("conversation.2", nil, ConnInfo{ConnID: "a", UserID: 7})
	users := hub.UsersInRoom("conversation.2")
	if len(users) != 1 || users[0] != models.UserID(7) {
		t.Fatalf("expected single user 7, got %v", users)
	}

	if got := hub.UsersInRoom("conversation.404"); len(got) != 0 {
		t.Fatalf("expected empty room, got %v", got)
	}
}

func TestHubSharesOneWriterAcrossRooms(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := &websocket.Conn{}

	hub.Join("conversation.1", conn, ConnInfo{ConnID: "a", UserID: 7})
	hub.Join("user.7", conn, ConnInfo{ConnID: "a", UserID: 7})
	if len(hub.writers) != 1 {
		t.Fatalf("expected one writer for the conn, got %d", len(hub.writers))
	}
	if hub.writers[conn].refs != 2 {
		t.Fatalf("expected two room refs, got %d", hub.writers[conn].refs)
	}

	// Rejoining the same room must not inflate the count.
	hub.Join("user.7", conn, ConnInfo{ConnID: "a", UserID: 7})
	if hub.writers[conn].refs != 2 {
		t.Fatalf("expected rejoin to keep two refs, got %d", hub.writers[conn].refs)
	}

	hub.Leave("conversation.1", conn)
	if hub.writers[conn] == nil || hub.writers[conn].refs != 1 {
		t.Fatalf("expected writer to survive the first leave")
	}

	// Double leave of an already-left room is a no-op.
	hub.Leave("conversation.1", conn)
	if hub.writers[conn].refs != 1 {
		t.Fatalf("expected repeated leave to keep one ref, got %d", hub.writers[conn].refs)
	}

	hub.Leave("user.7", conn)
	if len(hub.writers) != 0 {
		t.Fatalf("expected writer to be dropped with the last room")
	}
}
