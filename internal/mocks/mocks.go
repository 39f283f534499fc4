package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"housing-chat-service/internal/directory"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/repositories"
)

var (
	_ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.ReactionRepository     = (*ReactionRepositoryMock)(nil)
	_ directory.Directory                 = (*DirectoryMock)(nil)
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreateDirect(ctx context.Context, a, b models.UserID, property *models.PropertyID) (models.Conversation, error) {
	args := m.Called(ctx, a, b, property)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, creator models.UserID, name, imageURL string, memberIDs []models.UserID) (models.Conversation, error) {
	args := m.Called(ctx, creator, name, imageURL, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, id models.ConversationID) (models.Conversation, error) {
	args := m.Called(ctx, id)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, id models.ConversationID, userID models.UserID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) Participants(ctx context.Context, id models.ConversationID) ([]models.Participant, error) {
	args := m.Called(ctx, id)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID models.UserID) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) SetArchived(ctx context.Context, id models.ConversationID, userID models.UserID, archived bool) error {
	args := m.Called(ctx, id, userID, archived)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SoftDeleteForUser(ctx context.Context, id models.ConversationID, userID models.UserID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) TouchLastMessage(ctx context.Context, id models.ConversationID, messageID models.MessageID, at time.Time) error {
	args := m.Called(ctx, id, messageID, at)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) IncrementUnread(ctx context.Context, id models.ConversationID, exclude []models.UserID) ([]models.UnreadEntry, error) {
	args := m.Called(ctx, id, exclude)
	var entries []models.UnreadEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.UnreadEntry)
	}
	return entries, args.Error(1)
}

func (m *ConversationRepositoryMock) ResetUnread(ctx context.Context, id models.ConversationID, userID models.UserID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, conversationID models.ConversationID, senderID models.UserID, draft models.MessageDraft) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, draft)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListVisible(ctx context.Context, conversationID models.ConversationID, viewerID models.UserID, page repositories.Pagination) ([]models.Message, string, error) {
	args := m.Called(ctx, conversationID, viewerID, page)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.String(1), args.Error(2)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID models.MessageID) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID models.MessageID, viewerID models.UserID) error {
	args := m.Called(ctx, messageID, viewerID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID models.ConversationID, viewerID models.UserID) ([]models.MessageID, error) {
	args := m.Called(ctx, conversationID, viewerID)
	var ids []models.MessageID
	if val := args.Get(0); val != nil {
		ids = val.([]models.MessageID)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) HideForUser(ctx context.Context, messageID models.MessageID, viewerID models.UserID) error {
	args := m.Called(ctx, messageID, viewerID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) EditContent(ctx context.Context, messageID models.MessageID, senderID models.UserID, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Toggle(ctx context.Context, messageID models.MessageID, userID models.UserID, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) ListForMessage(ctx context.Context, messageID models.MessageID) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var reactions []models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.Reaction)
	}
	return reactions, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) FindByID(ctx context.Context, id models.UserID) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *DirectoryMock) FindByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *DirectoryMock) BulkUsers(ctx context.Context, ids []models.UserID) (map[models.UserID]models.User, error) {
	args := m.Called(ctx, ids)
	var users map[models.UserID]models.User
	if val := args.Get(0); val != nil {
		users = val.(map[models.UserID]models.User)
	}
	return users, args.Error(1)
}
