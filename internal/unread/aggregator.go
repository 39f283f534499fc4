package unread

import (
	"context"

	"go.uber.org/zap"

	"housing-chat-service/internal/models"
	"housing-chat-service/internal/realtime"
	"housing-chat-service/internal/repositories"
)

// RoomViewers reports who is watching a room right now.
type RoomViewers interface {
	UsersInRoom(room string) []models.UserID
}

// Aggregator maintains per-user unread badges and read receipts, and
// publishes the corresponding events after each change.
type Aggregator struct {
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	viewers  RoomViewers
	fanout   realtime.Publisher
	log      *zap.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, viewers RoomViewers, fanout realtime.Publisher, log *zap.Logger) *Aggregator {
	return &Aggregator{convRepo: convRepo, msgRepo: msgRepo, viewers: viewers, fanout: fanout, log: log}
}

// MessageCreated bumps the badge of every participant who did not just see
// the message: the sender never counts it, and neither does anyone with a
// live connection to the conversation room.
func (a *Aggregator) MessageCreated(ctx context.Context, conversationID models.ConversationID, senderID models.UserID) {
	room := realtime.ConversationRoom(conversationID)
	exclude := append([]models.UserID{senderID}, a.viewers.UsersInRoom(room)...)

	entries, err := a.convRepo.IncrementUnread(ctx, conversationID, exclude)
	if err != nil {
		a.log.Error("unread increment failed", zap.Int64("conversation_id", int64(conversationID)), zap.Error(err))
		return
	}

	for _, entry := range entries {
		count := entry.Count
		_ = a.fanout.Publish(ctx, realtime.UserRoom(entry.UserID), models.EventUnreadUpdated, models.ConversationEvent{
			ConversationID: conversationID,
			UserID:         entry.UserID,
			Unread:         &count,
		})
	}
}

// ConversationOpened zeroes the caller's badge, marks everything visible
// as read, and tells the room which messages gained a reader.
func (a *Aggregator) ConversationOpened(ctx context.Context, conversationID models.ConversationID, userID models.UserID) error {
	if err := a.convRepo.ResetUnread(ctx, conversationID, userID); err != nil {
		return err
	}
	marked, err := a.msgRepo.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	if len(marked) > 0 {
		_ = a.fanout.Publish(ctx, realtime.ConversationRoom(conversationID), models.EventReadReceiptUpdated, models.ConversationEvent{
			ConversationID: conversationID,
			UserID:         userID,
			MessageIDs:     marked,
		})
	}
	zero := 0
	_ = a.fanout.Publish(ctx, realtime.UserRoom(userID), models.EventUnreadUpdated, models.ConversationEvent{
		ConversationID: conversationID,
		UserID:         userID,
		Unread:         &zero,
	})
	return nil
}
