package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"housing-chat-service/internal/apperrors"
)

func TestMessageDraftValidate(t *testing.T) {
	cases := []struct {
		name  string
		draft MessageDraft
		valid bool
	}{
		{"text with content", MessageDraft{Type: MessageTypeText, Content: "hi"}, true},
		{"text without content", MessageDraft{Type: MessageTypeText}, false},
		{"image with url", MessageDraft{Type: MessageTypeImage, FileURL: "https://cdn/x.png"}, true},
		{"image without url", MessageDraft{Type: MessageTypeImage, Content: "not a url"}, false},
		{"voice with url", MessageDraft{Type: MessageTypeVoice, FileURL: "https://cdn/x.ogg", Duration: 4}, true},
		{"file without url", MessageDraft{Type: MessageTypeFile, FileName: "cv.pdf"}, false},
		{"gif with url", MessageDraft{Type: MessageTypeGif, FileURL: "https://cdn/x.gif"}, true},
		{"unknown type", MessageDraft{Type: "sticker", Content: "x"}, false},
		{"empty type", MessageDraft{Content: "x"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.draft.Validate()
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
		})
	}
}
