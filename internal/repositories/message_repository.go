package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
)

var ErrMessageNotFound = apperrors.NotFound("message not found")

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.reply_to_id, m.message_type, m.content, m.file_url, m.file_name, m.file_size, m.duration_seconds, m.is_edited, m.created_at`

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Pagination selects a keyset page of the message log. Newest pages walk
// the log newest→oldest; otherwise oldest→newest.
type Pagination struct {
	Cursor string
	Limit  int
	Newest bool
}

// MessageRepository is the persisted ordered message log.
type MessageRepository interface {
	Append(ctx context.Context, conversationID models.ConversationID, senderID models.UserID, draft models.MessageDraft) (models.Message, error)
	ListVisible(ctx context.Context, conversationID models.ConversationID, viewerID models.UserID, page Pagination) ([]models.Message, string, error)
	GetMessage(ctx context.Context, messageID models.MessageID) (models.Message, error)
	MarkRead(ctx context.Context, messageID models.MessageID, viewerID models.UserID) error
	MarkConversationRead(ctx context.Context, conversationID models.ConversationID, viewerID models.UserID) ([]models.MessageID, error)
	HideForUser(ctx context.Context, messageID models.MessageID, viewerID models.UserID) error
	EditContent(ctx context.Context, messageID models.MessageID, senderID models.UserID, content string) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append validates the draft and stores the message. It does not notify
// anyone; the caller orchestrates fan-out after the write commits.
func (r *MessageRepo) Append(ctx context.Context, conversationID models.ConversationID, senderID models.UserID, draft models.MessageDraft) (models.Message, error) {
	if err := draft.Validate(); err != nil {
		return models.Message{}, err
	}
	if draft.ReplyToID != nil {
		var sameConversation bool
		err := r.db.GetContext(ctx, &sameConversation,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1 AND conversation_id=$2)`,
			*draft.ReplyToID, conversationID)
		if err != nil {
			return models.Message{}, err
		}
		if !sameConversation {
			return models.Message{}, apperrors.Validation("reply_to must reference a message in the same conversation")
		}
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, reply_to_id, message_type, content, file_url, file_name, file_size, duration_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, conversation_id, sender_id, reply_to_id, message_type, content, file_url, file_name, file_size, duration_seconds, is_edited, created_at`,
		conversationID, senderID, draft.ReplyToID, draft.Type, draft.Content, draft.FileURL, draft.FileName, draft.FileSize, draft.Duration).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}
	msg.Reactions = []models.Reaction{}
	msg.ReadBy = []models.UserID{}
	return msg, nil
}

// ListVisible returns a page of messages the viewer has not soft-deleted,
// ordered by (created_at, id), with reactions and read receipts hydrated.
// The second return value is the cursor for the next page, empty when the
// log is exhausted.
func (r *MessageRepo) ListVisible(ctx context.Context, conversationID models.ConversationID, viewerID models.UserID, page Pagination) ([]models.Message, string, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := `SELECT ` + messageColumns + ` FROM messages m
        WHERE m.conversation_id=$1
        AND NOT EXISTS (SELECT 1 FROM message_hidden h WHERE h.message_id=m.id AND h.user_id=$2)`
	args := []interface{}{conversationID, viewerID}

	if page.Cursor != "" {
		at, id, err := decodeCursor(page.Cursor)
		if err != nil {
			return nil, "", err
		}
		if page.Newest {
			query += ` AND (m.created_at, m.id) < ($3, $4)`
		} else {
			query += ` AND (m.created_at, m.id) > ($3, $4)`
		}
		args = append(args, at, id)
	}

	if page.Newest {
		query += ` ORDER BY m.created_at DESC, m.id DESC`
	} else {
		query += ` ORDER BY m.created_at ASC, m.id ASC`
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, "", err
	}
	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, "", err
	}

	next := ""
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return msgs, next, nil
}

// GetMessage retrieves a single message with its reactions and readers.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID models.MessageID) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages m WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs := []models.Message{msg}
	if err := r.hydrate(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// MarkRead adds the viewer to the message's read set. Redundant calls are
// no-ops; a reader is never removed once added.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID models.MessageID, viewerID models.UserID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, messageID, viewerID)
	return err
}

// MarkConversationRead marks every message the viewer can see as read and
// returns the ids that were newly marked.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID models.ConversationID, viewerID models.UserID) ([]models.MessageID, error) {
	var ids []models.MessageID
	err := r.db.SelectContext(ctx, &ids, `INSERT INTO message_reads (message_id, user_id)
        SELECT m.id, $2 FROM messages m
        WHERE m.conversation_id=$1 AND m.sender_id <> $2
        AND NOT EXISTS (SELECT 1 FROM message_hidden h WHERE h.message_id=m.id AND h.user_id=$2)
        ON CONFLICT DO NOTHING
        RETURNING message_id`, conversationID, viewerID)
	return ids, err
}

// HideForUser soft-deletes one message for the viewer only.
func (r *MessageRepo) HideForUser(ctx context.Context, messageID models.MessageID, viewerID models.UserID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_hidden (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, messageID, viewerID)
	return err
}

// EditContent replaces a text message's content and flags it edited.
// Only the sender's own text messages match.
func (r *MessageRepo) EditContent(ctx context.Context, messageID models.MessageID, senderID models.UserID, content string) (models.Message, error) {
	if content == "" {
		return models.Message{}, apperrors.Validation("edited content must not be empty")
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$3, is_edited=TRUE
        WHERE id=$1 AND sender_id=$2 AND message_type='text'
        RETURNING id, conversation_id, sender_id, reply_to_id, message_type, content, file_url, file_name, file_size, duration_seconds, is_edited, created_at`,
		messageID, senderID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs := []models.Message{msg}
	if err := r.hydrate(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

func (r *MessageRepo) hydrate(ctx context.Context, msgs []models.Message) error {
	for i := range msgs {
		msgs[i].Reactions = []models.Reaction{}
		msgs[i].ReadBy = []models.UserID{}
	}
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]models.MessageID, 0, len(msgs))
	index := make(map[models.MessageID]int, len(msgs))
	for i, m := range msgs {
		ids = append(ids, m.ID)
		index[m.ID] = i
	}

	reactionsQuery, args, err := sqlx.In(`SELECT message_id, user_id, emoji, created_at FROM message_reactions WHERE message_id IN (?) ORDER BY created_at, emoji`, ids)
	if err != nil {
		return err
	}
	var reactions []models.Reaction
	if err := r.db.SelectContext(ctx, &reactions, r.db.Rebind(reactionsQuery), args...); err != nil {
		return err
	}
	for _, reaction := range reactions {
		i := index[reaction.MessageID]
		msgs[i].Reactions = append(msgs[i].Reactions, reaction)
	}

	readsQuery, args, err := sqlx.In(`SELECT message_id, user_id FROM message_reads WHERE message_id IN (?) ORDER BY read_at`, ids)
	if err != nil {
		return err
	}
	var reads []struct {
		MessageID models.MessageID `db:"message_id"`
		UserID    models.UserID    `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &reads, r.db.Rebind(readsQuery), args...); err != nil {
		return err
	}
	for _, read := range reads {
		i := index[read.MessageID]
		msgs[i].ReadBy = append(msgs[i].ReadBy, read.UserID)
	}
	return nil
}
