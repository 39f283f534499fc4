package models

import "time"

// Realtime event names. Per-viewer deletions are intentionally absent:
// they affect one user's view only and are never broadcast.
const (
	EventMessageCreated     = "message-created"
	EventMessageUpdated     = "message-updated"
	EventReadReceiptUpdated = "read-receipt-updated"
	EventPresenceChanged    = "presence-changed"
	EventUnreadUpdated      = "unread-updated"
)

// ConversationEvent is the payload fanned out to realtime rooms.
type ConversationEvent struct {
	ConversationID ConversationID `json:"conversation_id,omitempty"`
	Message        *Message       `json:"message,omitempty"`
	MessageID      MessageID      `json:"message_id,omitempty"`
	UserID         UserID         `json:"user_id,omitempty"`
	MessageIDs     []MessageID    `json:"message_ids,omitempty"`
	Reactions      []Reaction     `json:"reactions,omitempty"`
	Unread         *int           `json:"unread,omitempty"`
	Online         *bool          `json:"online,omitempty"`
	LastSeen       *time.Time     `json:"last_seen,omitempty"`
}
