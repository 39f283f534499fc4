package models

import "time"

// Conversation is a persistent thread between a fixed participant set.
// A direct conversation has exactly two participants, optionally scoped
// to a property; user_lo/user_hi hold the sorted pair so the database
// can enforce the canonical-conversation uniqueness.
type Conversation struct {
	ID            ConversationID `db:"id" json:"id"`
	IsGroup       bool           `db:"is_group" json:"is_group"`
	PropertyID    *PropertyID    `db:"property_id" json:"property_id,omitempty"`
	UserLo        *UserID        `db:"user_lo" json:"-"`
	UserHi        *UserID        `db:"user_hi" json:"-"`
	Name          string         `db:"name" json:"name,omitempty"`
	ImageURL      string         `db:"image_url" json:"image_url,omitempty"`
	CreatorID     UserID         `db:"creator_id" json:"creator_id"`
	LastMessageID *MessageID     `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time     `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Participant is one user's membership row in a conversation. Archived
// hides the conversation from that user's list only; UnreadCount is the
// per-user unread counter.
type Participant struct {
	ConversationID ConversationID `db:"conversation_id" json:"conversation_id"`
	UserID         UserID         `db:"user_id" json:"user_id"`
	IsAdmin        bool           `db:"is_admin" json:"is_admin"`
	Archived       bool           `db:"archived" json:"archived"`
	UnreadCount    int            `db:"unread_count" json:"unread_count"`
	JoinedAt       time.Time      `db:"joined_at" json:"joined_at"`
}

// ConversationSummary is the per-user API view of a conversation.
type ConversationSummary struct {
	Conversation
	UnreadCount  int      `json:"unread_count"`
	Participants []UserID `json:"participants"`
}

// UnreadEntry reports one participant's counter after an increment.
type UnreadEntry struct {
	UserID UserID `db:"user_id"`
	Count  int    `db:"unread_count"`
}
