package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"housing-chat-service/internal/realtime"
	"housing-chat-service/internal/storage"
)

var (
	_ realtime.Publisher = (*PublisherMock)(nil)
	_ storage.Uploader   = (*UploaderMock)(nil)
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, room, event string, payload any) error {
	args := m.Called(ctx, room, event, payload)
	return args.Error(0)
}

func (m *PublisherMock) Name() string {
	return "mock"
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (storage.UploadResult, error) {
	args := m.Called(ctx, folder, filename, contentType, body)
	var result storage.UploadResult
	if val := args.Get(0); val != nil {
		result = val.(storage.UploadResult)
	}
	return result, args.Error(1)
}
