package models

import "time"

// Reaction is a single (emoji, user) pair on a message. The store keeps
// at most one row per (message, user, emoji) triple; a user may hold
// several distinct emojis on the same message.
type Reaction struct {
	MessageID MessageID `db:"message_id" json:"-"`
	UserID    UserID    `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}
