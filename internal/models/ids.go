package models

// Typed identifiers keep user, conversation and message ids from being
// mixed up across entity boundaries.
type (
	UserID         int64
	ConversationID int64
	MessageID      int64
	PropertyID     int64
)
