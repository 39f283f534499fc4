package unread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"housing-chat-service/internal/mocks"
	"housing-chat-service/internal/models"
)

type staticViewers struct {
	users []models.UserID
}

func (v staticViewers) UsersInRoom(room string) []models.UserID { return v.users }

func TestMessageCreatedSkipsSenderAndLiveViewers(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	fanout := new(mocks.PublisherMock)
	aggregator := NewAggregator(convRepo, new(mocks.MessageRepositoryMock), staticViewers{users: []models.UserID{2}}, fanout, zap.NewNop())

	convRepo.On("IncrementUnread", mock.Anything, models.ConversationID(9), []models.UserID{1, 2}).
		Return([]models.UnreadEntry{{UserID: 3, Count: 4}}, nil).Once()
	fanout.On("Publish", mock.Anything, "user.3", models.EventUnreadUpdated, mock.Anything).Return(nil).Once()

	aggregator.MessageCreated(context.Background(), models.ConversationID(9), models.UserID(1))

	convRepo.AssertExpectations(t)
	fanout.AssertExpectations(t)
}

func TestConversationOpenedResetsBadgeAndMarksRead(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	fanout := new(mocks.PublisherMock)
	aggregator := NewAggregator(convRepo, msgRepo, staticViewers{}, fanout, zap.NewNop())

	convRepo.On("ResetUnread", mock.Anything, models.ConversationID(9), models.UserID(2)).Return(nil).Once()
	msgRepo.On("MarkConversationRead", mock.Anything, models.ConversationID(9), models.UserID(2)).
		Return([]models.MessageID{5, 6}, nil).Once()
	fanout.On("Publish", mock.Anything, "conversation.9", models.EventReadReceiptUpdated, mock.Anything).Return(nil).Once()
	fanout.On("Publish", mock.Anything, "user.2", models.EventUnreadUpdated, mock.Anything).Return(nil).Once()

	err := aggregator.ConversationOpened(context.Background(), models.ConversationID(9), models.UserID(2))
	require.NoError(t, err)

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	fanout.AssertExpectations(t)
}

func TestConversationOpenedSkipsReceiptWhenNothingNew(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	fanout := new(mocks.PublisherMock)
	aggregator := NewAggregator(convRepo, msgRepo, staticViewers{}, fanout, zap.NewNop())

	convRepo.On("ResetUnread", mock.Anything, models.ConversationID(9), models.UserID(2)).Return(nil).Once()
	msgRepo.On("MarkConversationRead", mock.Anything, models.ConversationID(9), models.UserID(2)).
		Return([]models.MessageID{}, nil).Once()
	fanout.On("Publish", mock.Anything, "user.2", models.EventUnreadUpdated, mock.Anything).Return(nil).Once()

	err := aggregator.ConversationOpened(context.Background(), models.ConversationID(9), models.UserID(2))
	require.NoError(t, err)
	fanout.AssertNotCalled(t, "Publish", mock.Anything, "conversation.9", models.EventReadReceiptUpdated, mock.Anything)
}
