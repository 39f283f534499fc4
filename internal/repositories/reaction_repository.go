package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
)

// ReactionRepository stores per-message emoji reactions. A (user, emoji)
// pair appears at most once per message.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID models.MessageID, userID models.UserID, emoji string) (bool, error)
	ListForMessage(ctx context.Context, messageID models.MessageID) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle adds the reaction when absent and removes it when present. The
// returned bool reports whether the reaction exists after the call. The
// primary key on (message_id, user_id, emoji) keeps concurrent toggles of
// the same pair from ever producing duplicates.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID models.MessageID, userID models.UserID, emoji string) (bool, error) {
	if emoji == "" {
		return false, apperrors.Validation("emoji is required")
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji)
        VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted > 0 {
		return true, nil
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`, messageID, userID, emoji)
	return false, err
}

// ListForMessage returns the message's reactions in creation order.
func (r *ReactionRepo) ListForMessage(ctx context.Context, messageID models.MessageID) ([]models.Reaction, error) {
	reactions := []models.Reaction{}
	err := r.db.SelectContext(ctx, &reactions, `SELECT message_id, user_id, emoji, created_at
        FROM message_reactions WHERE message_id=$1 ORDER BY created_at, emoji`, messageID)
	return reactions, err
}
