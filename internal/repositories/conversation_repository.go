package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
)

var ErrConversationNotFound = apperrors.NotFound("conversation not found")

const conversationColumns = `id, is_group, property_id, user_lo, user_hi, name, image_url, creator_id, last_message_id, last_message_at, created_at`

// ConversationRepository is the registry of conversations and their
// per-participant state (membership, archive flag, unread counter).
type ConversationRepository interface {
	GetOrCreateDirect(ctx context.Context, a, b models.UserID, property *models.PropertyID) (models.Conversation, error)
	CreateGroup(ctx context.Context, creator models.UserID, name, imageURL string, memberIDs []models.UserID) (models.Conversation, error)
	GetConversation(ctx context.Context, id models.ConversationID) (models.Conversation, error)
	IsParticipant(ctx context.Context, id models.ConversationID, userID models.UserID) (bool, error)
	Participants(ctx context.Context, id models.ConversationID) ([]models.Participant, error)
	ListForUser(ctx context.Context, userID models.UserID) ([]models.ConversationSummary, error)
	SetArchived(ctx context.Context, id models.ConversationID, userID models.UserID, archived bool) error
	SoftDeleteForUser(ctx context.Context, id models.ConversationID, userID models.UserID) error
	TouchLastMessage(ctx context.Context, id models.ConversationID, messageID models.MessageID, at time.Time) error
	IncrementUnread(ctx context.Context, id models.ConversationID, exclude []models.UserID) ([]models.UnreadEntry, error)
	ResetUnread(ctx context.Context, id models.ConversationID, userID models.UserID) error
}

// normalizePair orders a direct-conversation pair so both participants map
// to the same (user_lo, user_hi) key regardless of who dials first.
func normalizePair(a, b models.UserID) (lo, hi models.UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetOrCreateDirect returns the canonical direct conversation for the
// unordered pair and property, creating it when absent. The partial unique
// index on (user_lo, user_hi, COALESCE(property_id,0)) makes the create
// path safe under concurrent first messages: a raced insert hits the index,
// returns no row, and the lookup is retried.
func (r *ConversationRepo) GetOrCreateDirect(ctx context.Context, a, b models.UserID, property *models.PropertyID) (models.Conversation, error) {
	if a == b {
		return models.Conversation{}, apperrors.Validation("cannot start a conversation with yourself")
	}
	lo, hi := normalizePair(a, b)

	lookup := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE is_group = FALSE AND user_lo=$1 AND user_hi=$2 AND COALESCE(property_id, 0) = COALESCE($3, 0)`

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, lookup, lo, hi, property)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO conversations (is_group, user_lo, user_hi, property_id, creator_id)
        VALUES (FALSE, $1, $2, $3, $4)
        ON CONFLICT DO NOTHING
        RETURNING `+conversationColumns, lo, hi, property, a).StructScan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the creation race; the winner's row is now visible.
		err = r.db.GetContext(ctx, &conv, lookup, lo, hi, property)
	}
	if err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range []models.UserID{lo, hi} {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id)
            VALUES ($1, $2) ON CONFLICT DO NOTHING`, conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}
	return conv, nil
}

// CreateGroup creates a group conversation and its members atomically.
// The creator becomes the first admin.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creator models.UserID, name, imageURL string, memberIDs []models.UserID) (models.Conversation, error) {
	if name == "" {
		return models.Conversation{}, apperrors.Validation("group name is required")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx, `INSERT INTO conversations (is_group, name, image_url, creator_id)
        VALUES (TRUE, $1, $2, $3) RETURNING `+conversationColumns, name, imageURL, creator).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	// ensure creator present and dedupe members
	memberSet := map[models.UserID]struct{}{creator: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]models.UserID, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
            VALUES ($1, $2, $3)`, conv.ID, id, id == creator); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, id models.ConversationID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, id models.ConversationID, userID models.UserID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`, id, userID)
	return exists, err
}

// Participants returns every membership row for the conversation.
func (r *ConversationRepo) Participants(ctx context.Context, id models.ConversationID) ([]models.Participant, error) {
	var rows []models.Participant
	err := r.db.SelectContext(ctx, &rows, `SELECT conversation_id, user_id, is_admin, archived, unread_count, joined_at
        FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`, id)
	return rows, err
}

type conversationListRow struct {
	models.Conversation
	Unread int `db:"user_unread"`
}

// ListForUser returns the caller's non-archived conversations, newest
// activity first, with the caller's unread counter and participant ids.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID models.UserID) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.is_group, c.property_id, c.user_lo, c.user_hi, c.name, c.image_url, c.creator_id,
            c.last_message_id, c.last_message_at, c.created_at, p.unread_count AS user_unread
        FROM conversations c
        INNER JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id=$1
        WHERE p.archived = FALSE
        ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`

	var rows []conversationListRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.ConversationSummary{}, nil
	}

	convIDs := make([]models.ConversationID, 0, len(rows))
	for _, row := range rows {
		convIDs = append(convIDs, row.ID)
	}
	membersQuery, args, err := sqlx.In(`SELECT conversation_id, user_id FROM conversation_participants WHERE conversation_id IN (?)`, convIDs)
	if err != nil {
		return nil, err
	}
	var members []struct {
		ConversationID models.ConversationID `db:"conversation_id"`
		UserID         models.UserID         `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &members, r.db.Rebind(membersQuery), args...); err != nil {
		return nil, err
	}
	membersByConv := map[models.ConversationID][]models.UserID{}
	for _, m := range members {
		membersByConv[m.ConversationID] = append(membersByConv[m.ConversationID], m.UserID)
	}

	result := make([]models.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.ConversationSummary{
			Conversation: row.Conversation,
			UnreadCount:  row.Unread,
			Participants: membersByConv[row.ID],
		})
	}
	return result, nil
}

// SetArchived toggles the caller's archive flag; other participants keep
// the conversation in their lists.
func (r *ConversationRepo) SetArchived(ctx context.Context, id models.ConversationID, userID models.UserID, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET archived=$3 WHERE conversation_id=$1 AND user_id=$2`, id, userID, archived)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SoftDeleteForUser hides every message of the conversation from one user.
// Idempotent; messages stay in storage and visible to everyone else.
func (r *ConversationRepo) SoftDeleteForUser(ctx context.Context, id models.ConversationID, userID models.UserID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_hidden (message_id, user_id)
        SELECT m.id, $2 FROM messages m WHERE m.conversation_id=$1
        ON CONFLICT DO NOTHING`, id, userID)
	return err
}

// TouchLastMessage records the newest message reference. GREATEST keeps
// last_message_at monotonically non-decreasing under concurrent sends.
func (r *ConversationRepo) TouchLastMessage(ctx context.Context, id models.ConversationID, messageID models.MessageID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations
        SET last_message_id=$2, last_message_at=GREATEST(COALESCE(last_message_at, to_timestamp(0)), $3)
        WHERE id=$1`, id, messageID, at)
	return err
}

// IncrementUnread bumps the counter for every participant not in the
// exclusion list and reports the new values.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, id models.ConversationID, exclude []models.UserID) ([]models.UnreadEntry, error) {
	excluded := make([]int64, 0, len(exclude))
	for _, userID := range exclude {
		excluded = append(excluded, int64(userID))
	}

	var entries []models.UnreadEntry
	err := r.db.SelectContext(ctx, &entries, `UPDATE conversation_participants
        SET unread_count = unread_count + 1
        WHERE conversation_id=$1 AND NOT (user_id = ANY($2))
        RETURNING user_id, unread_count`, id, pq.Array(excluded))
	return entries, err
}

// ResetUnread zeroes one participant's counter.
func (r *ConversationRepo) ResetUnread(ctx context.Context, id models.ConversationID, userID models.UserID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_participants SET unread_count=0 WHERE conversation_id=$1 AND user_id=$2`, id, userID)
	return err
}
