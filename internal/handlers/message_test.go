package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/mocks"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/unread"
)

type messageHandlerMocks struct {
	convRepo     *mocks.ConversationRepositoryMock
	msgRepo      *mocks.MessageRepositoryMock
	reactionRepo *mocks.ReactionRepositoryMock
	fanout       *mocks.PublisherMock
}

func setupMessageRouter(t *testing.T) (*gin.Engine, messageHandlerMocks) {
	t.Helper()
	m := messageHandlerMocks{
		convRepo:     new(mocks.ConversationRepositoryMock),
		msgRepo:      new(mocks.MessageRepositoryMock),
		reactionRepo: new(mocks.ReactionRepositoryMock),
		fanout:       new(mocks.PublisherMock),
	}
	aggregator := unread.NewAggregator(m.convRepo, m.msgRepo, noViewers{}, m.fanout, zap.NewNop())
	handler := NewMessageHandler(m.convRepo, m.msgRepo, m.reactionRepo, nil, m.fanout, aggregator, zap.NewNop())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", models.UserID(1))
		c.Next()
	})
	r.GET("/conversations/:conversation_id/messages", handler.ListMessages)
	r.POST("/conversations/:conversation_id/messages", handler.PostMessage)
	r.PATCH("/conversations/:conversation_id/messages/:message_id", handler.EditMessage)
	r.DELETE("/conversations/:conversation_id/messages/:message_id/me", handler.DeleteMessageForMe)
	r.POST("/conversations/:conversation_id/messages/:message_id/reactions", handler.ToggleReaction)
	r.POST("/conversations/:conversation_id/messages/:message_id/read", handler.MarkMessageRead)
	return r, m
}

func expectMember(m messageHandlerMocks, conversationID models.ConversationID) {
	m.convRepo.On("IsParticipant", mock.Anything, conversationID, models.UserID(1)).Return(true, nil)
}

func TestPostMessageSuccess(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	created := models.Message{ID: 20, ConversationID: 5, SenderID: 1, Type: models.MessageTypeText, Content: "hi", CreatedAt: time.Now()}
	m.msgRepo.On("Append", mock.Anything, models.ConversationID(5), models.UserID(1), mock.Anything).Return(created, nil).Once()
	m.convRepo.On("TouchLastMessage", mock.Anything, models.ConversationID(5), models.MessageID(20), mock.Anything).Return(nil).Once()
	m.fanout.On("Publish", mock.Anything, "conversation.5", models.EventMessageCreated, mock.Anything).Return(nil).Once()
	m.convRepo.On("IncrementUnread", mock.Anything, models.ConversationID(5), []models.UserID{1}).
		Return([]models.UnreadEntry{{UserID: 2, Count: 1}}, nil).Once()
	m.fanout.On("Publish", mock.Anything, "user.2", models.EventUnreadUpdated, mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"type":"text","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	m.msgRepo.AssertExpectations(t)
	m.convRepo.AssertExpectations(t)
	m.fanout.AssertExpectations(t)
}

func TestPostMessageValidationFailure(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("Append", mock.Anything, models.ConversationID(5), models.UserID(1), mock.Anything).
		Return(models.Message{}, apperrors.Validation("text message requires content")).Once()

	body := bytes.NewBufferString(`{"type":"text"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.fanout.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageRejectsCrossConversationReply(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("GetMessage", mock.Anything, models.MessageID(30)).
		Return(models.Message{ID: 30, ConversationID: 6, Type: models.MessageTypeText}, nil).Once()

	body := bytes.NewBufferString(`{"type":"text","content":"x","reply_to_id":30}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.msgRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageReplyInSameConversation(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	replyTo := models.MessageID(30)
	m.msgRepo.On("GetMessage", mock.Anything, replyTo).
		Return(models.Message{ID: 30, ConversationID: 5, Type: models.MessageTypeText}, nil).Once()
	created := models.Message{ID: 31, ConversationID: 5, SenderID: 1, ReplyToID: &replyTo, Type: models.MessageTypeText, Content: "x", CreatedAt: time.Now()}
	m.msgRepo.On("Append", mock.Anything, models.ConversationID(5), models.UserID(1), mock.Anything).Return(created, nil).Once()
	m.convRepo.On("TouchLastMessage", mock.Anything, models.ConversationID(5), models.MessageID(31), mock.Anything).Return(nil).Once()
	m.fanout.On("Publish", mock.Anything, "conversation.5", models.EventMessageCreated, mock.Anything).Return(nil).Once()
	m.convRepo.On("IncrementUnread", mock.Anything, models.ConversationID(5), []models.UserID{1}).
		Return([]models.UnreadEntry{}, nil).Once()

	body := bytes.NewBufferString(`{"type":"text","content":"x","reply_to_id":30}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	m.msgRepo.AssertExpectations(t)
}

func TestPostMessageRequiresMembership(t *testing.T) {
	router, m := setupMessageRouter(t)
	m.convRepo.On("IsParticipant", mock.Anything, models.ConversationID(5), models.UserID(1)).Return(false, nil).Once()

	body := bytes.NewBufferString(`{"type":"text","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.msgRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesRejectsMalformedCursor(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("ListVisible", mock.Anything, models.ConversationID(5), models.UserID(1), mock.Anything).
		Return(([]models.Message)(nil), "", apperrors.Validation("malformed cursor")).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages?cursor=garbage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleReactionBroadcastsNewSet(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("GetMessage", mock.Anything, models.MessageID(20)).
		Return(models.Message{ID: 20, ConversationID: 5, SenderID: 2}, nil).Once()
	m.reactionRepo.On("Toggle", mock.Anything, models.MessageID(20), models.UserID(1), "🔥").Return(true, nil).Once()
	m.reactionRepo.On("ListForMessage", mock.Anything, models.MessageID(20)).
		Return([]models.Reaction{{MessageID: 20, UserID: 1, Emoji: "🔥"}}, nil).Once()
	m.fanout.On("Publish", mock.Anything, "conversation.5", models.EventMessageUpdated, mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"emoji":"🔥"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages/20/reactions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Added     bool              `json:"added"`
		Reactions []models.Reaction `json:"reactions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Added)
	require.Len(t, resp.Reactions, 1)
	m.reactionRepo.AssertExpectations(t)
}

func TestToggleReactionWrongConversation(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("GetMessage", mock.Anything, models.MessageID(20)).
		Return(models.Message{ID: 20, ConversationID: 6}, nil).Once()

	body := bytes.NewBufferString(`{"emoji":"🔥"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages/20/reactions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	m.reactionRepo.AssertNotCalled(t, "Toggle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkMessageReadIsIdempotent(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("GetMessage", mock.Anything, models.MessageID(20)).
		Return(models.Message{ID: 20, ConversationID: 5, SenderID: 2}, nil).Twice()
	m.msgRepo.On("MarkRead", mock.Anything, models.MessageID(20), models.UserID(1)).Return(nil).Twice()
	m.fanout.On("Publish", mock.Anything, "conversation.5", models.EventReadReceiptUpdated, mock.Anything).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages/20/read", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	m.msgRepo.AssertExpectations(t)
}

func TestEditMessageOnlySender(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("GetMessage", mock.Anything, models.MessageID(20)).
		Return(models.Message{ID: 20, ConversationID: 5, SenderID: 2, Type: models.MessageTypeText}, nil).Once()

	body := bytes.NewBufferString(`{"content":"edited"}`)
	req := httptest.NewRequest(http.MethodPatch, "/conversations/5/messages/20", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.msgRepo.AssertNotCalled(t, "EditContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageForMe(t *testing.T) {
	router, m := setupMessageRouter(t)
	expectMember(m, 5)

	m.msgRepo.On("GetMessage", mock.Anything, models.MessageID(20)).
		Return(models.Message{ID: 20, ConversationID: 5, SenderID: 2}, nil).Once()
	m.msgRepo.On("HideForUser", mock.Anything, models.MessageID(20), models.UserID(1)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5/messages/20/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	m.fanout.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.msgRepo.AssertExpectations(t)
}
