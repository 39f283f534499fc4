package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/mocks"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/unread"
)

type noViewers struct{}

func (noViewers) UsersInRoom(room string) []models.UserID { return nil }

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", models.UserID(1))
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:conversation_id", handler.GetConversation)
	r.POST("/conversations/direct", handler.StartDirect)
	r.POST("/conversations/group", handler.CreateGroup)
	r.POST("/conversations/:conversation_id/archive", handler.Archive)
	r.DELETE("/conversations/:conversation_id/me", handler.DeleteForMe)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	users := new(mocks.DirectoryMock)
	handler := NewConversationHandler(convRepo, users, nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("ListForUser", mock.Anything, models.UserID(1)).Return([]models.ConversationSummary{
		{Conversation: models.Conversation{ID: 3}, UnreadCount: 2, Participants: []models.UserID{1, 2}},
	}, nil).Once()
	users.On("BulkUsers", mock.Anything, mock.Anything).
		Return(map[models.UserID]models.User{2: {ID: 2, Name: "Bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	convRepo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestListConversationsDirectoryOutageDegrades(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	users := new(mocks.DirectoryMock)
	handler := NewConversationHandler(convRepo, users, nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("ListForUser", mock.Anything, models.UserID(1)).Return([]models.ConversationSummary{
		{Conversation: models.Conversation{ID: 3}, Participants: []models.UserID{1, 2}},
	}, nil).Once()
	users.On("BulkUsers", mock.Anything, mock.Anything).
		Return((map[models.UserID]models.User)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetConversationIncludesMembership(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	users := new(mocks.DirectoryMock)
	handler := NewConversationHandler(convRepo, users, nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("GetConversation", mock.Anything, models.ConversationID(11)).
		Return(models.Conversation{ID: 11, IsGroup: true, Name: "flatmates"}, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, models.ConversationID(11), models.UserID(1)).Return(true, nil).Once()
	convRepo.On("Participants", mock.Anything, models.ConversationID(11)).Return([]models.Participant{
		{ConversationID: 11, UserID: 1, IsAdmin: true},
		{ConversationID: 11, UserID: 2},
	}, nil).Once()
	users.On("BulkUsers", mock.Anything, []models.UserID{1, 2}).
		Return(map[models.UserID]models.User{2: {ID: 2, Name: "Bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/11", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Participants []struct {
			UserID  models.UserID `json:"user_id"`
			Name    string        `json:"name"`
			IsAdmin bool          `json:"is_admin"`
		} `json:"participants"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Participants, 2)
	require.True(t, resp.Participants[0].IsAdmin)
	require.Equal(t, "Bob", resp.Participants[1].Name)
	convRepo.AssertExpectations(t)
}

func TestGetConversationRequiresMembership(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.DirectoryMock), nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("GetConversation", mock.Anything, models.ConversationID(11)).
		Return(models.Conversation{ID: 11}, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, models.ConversationID(11), models.UserID(1)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/11", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	convRepo.AssertNotCalled(t, "Participants", mock.Anything, mock.Anything)
}

func TestStartDirectSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	users := new(mocks.DirectoryMock)
	handler := NewConversationHandler(convRepo, users, nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	users.On("FindByID", mock.Anything, models.UserID(2)).Return(models.User{ID: 2}, nil).Once()
	convRepo.On("GetOrCreateDirect", mock.Anything, models.UserID(1), models.UserID(2), (*models.PropertyID)(nil)).
		Return(models.Conversation{ID: 10}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"participant_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestStartDirectWithSelfRejected(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	users := new(mocks.DirectoryMock)
	handler := NewConversationHandler(convRepo, users, nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	users.On("FindByID", mock.Anything, models.UserID(1)).Return(models.User{ID: 1}, nil).Once()
	convRepo.On("GetOrCreateDirect", mock.Anything, models.UserID(1), models.UserID(1), (*models.PropertyID)(nil)).
		Return(models.Conversation{}, apperrors.Validation("cannot start a conversation with yourself")).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"participant_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDirectUnknownParticipant(t *testing.T) {
	users := new(mocks.DirectoryMock)
	handler := NewConversationHandler(new(mocks.ConversationRepositoryMock), users, nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	users.On("FindByID", mock.Anything, models.UserID(99)).
		Return(models.User{}, apperrors.NotFound("user not found")).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"participant_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGroupSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.DirectoryMock), nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("CreateGroup", mock.Anything, models.UserID(1), "flatmates", "", []models.UserID{2, 3}).
		Return(models.Conversation{ID: 11, IsGroup: true}, nil).Once()

	body := bytes.NewBufferString(`{"name":"flatmates","member_ids":[2,3]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/group", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestArchiveUnknownConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.DirectoryMock), nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("SetArchived", mock.Anything, models.ConversationID(8), models.UserID(1), true).
		Return(apperrors.NotFound("conversation not found")).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/8/archive", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteForMeRequiresMembership(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.DirectoryMock), nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("GetConversation", mock.Anything, models.ConversationID(5)).Return(models.Conversation{ID: 5}, nil).Once()
	convRepo.On("IsParticipant", mock.Anything, models.ConversationID(5), models.UserID(1)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	convRepo.AssertNotCalled(t, "SoftDeleteForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteForMeUnknownConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewConversationHandler(convRepo, new(mocks.DirectoryMock), nil, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("GetConversation", mock.Anything, models.ConversationID(5)).
		Return(models.Conversation{}, apperrors.NotFound("conversation not found")).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadZeroesBadge(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	fanout := new(mocks.PublisherMock)
	aggregator := unread.NewAggregator(convRepo, msgRepo, noViewers{}, fanout, zap.NewNop())
	handler := NewConversationHandler(convRepo, new(mocks.DirectoryMock), aggregator, nil, zap.NewNop())
	router := setupConversationRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, models.ConversationID(5), models.UserID(1)).Return(true, nil).Once()
	convRepo.On("ResetUnread", mock.Anything, models.ConversationID(5), models.UserID(1)).Return(nil).Once()
	msgRepo.On("MarkConversationRead", mock.Anything, models.ConversationID(5), models.UserID(1)).
		Return([]models.MessageID{7}, nil).Once()
	fanout.On("Publish", mock.Anything, "conversation.5", models.EventReadReceiptUpdated, mock.Anything).Return(nil).Once()
	fanout.On("Publish", mock.Anything, "user.1", models.EventUnreadUpdated, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	fanout.AssertExpectations(t)
}
