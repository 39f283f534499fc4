package models

import (
	"time"

	"housing-chat-service/internal/apperrors"
)

// MessageType discriminates the payload shape of a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVoice MessageType = "voice"
	MessageTypeFile  MessageType = "file"
	MessageTypeGif   MessageType = "gif"
)

// Message is one entry in a conversation's ordered log. Ordering is
// (created_at, id) and is never re-sorted after insertion. Reactions and
// ReadBy are hydrated separately from their own tables.
type Message struct {
	ID             MessageID      `db:"id" json:"id"`
	ConversationID ConversationID `db:"conversation_id" json:"conversation_id"`
	SenderID       UserID         `db:"sender_id" json:"sender_id"`
	ReplyToID      *MessageID     `db:"reply_to_id" json:"reply_to,omitempty"`
	Type           MessageType    `db:"message_type" json:"message_type"`
	Content        string         `db:"content" json:"content,omitempty"`
	FileURL        string         `db:"file_url" json:"file_url,omitempty"`
	FileName       string         `db:"file_name" json:"file_name,omitempty"`
	FileSize       int64          `db:"file_size" json:"file_size,omitempty"`
	Duration       int            `db:"duration_seconds" json:"duration,omitempty"`
	IsEdited       bool           `db:"is_edited" json:"is_edited"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	Reactions      []Reaction     `db:"-" json:"reactions"`
	ReadBy         []UserID       `db:"-" json:"read_by"`
}

// MessageDraft carries the client-supplied fields of a new message.
type MessageDraft struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	FileURL   string      `json:"file_url"`
	FileName  string      `json:"file_name"`
	FileSize  int64       `json:"file_size"`
	Duration  int         `json:"duration"`
	ReplyToID *MessageID  `json:"reply_to"`
}

// Validate enforces the type-dependent required fields: content for text
// messages, a file URL for everything else.
func (d MessageDraft) Validate() error {
	switch d.Type {
	case MessageTypeText:
		if d.Content == "" {
			return apperrors.Validation("text message requires content")
		}
	case MessageTypeImage, MessageTypeVoice, MessageTypeFile, MessageTypeGif:
		if d.FileURL == "" {
			return apperrors.Validation(string(d.Type) + " message requires file_url")
		}
	default:
		return apperrors.Validation("unknown message type")
	}
	return nil
}
