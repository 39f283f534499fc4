package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"housing-chat-service/internal/auth"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/realtime"
	"housing-chat-service/internal/repositories"
)

// TokenHandler issues channel tokens for realtime subscriptions.
type TokenHandler struct {
	convRepo repositories.ConversationRepository
	tokens   *auth.TokenManager
}

// NewTokenHandler builds a TokenHandler.
func NewTokenHandler(convRepo repositories.ConversationRepository, tokens *auth.TokenManager) *TokenHandler {
	return &TokenHandler{convRepo: convRepo, tokens: tokens}
}

// IssueChannelToken grants a short-lived token for the requested
// conversation rooms plus the caller's personal room. Membership is
// checked per room at issue time; the websocket handshake trusts the
// grant afterwards.
func (h *TokenHandler) IssueChannelToken(c *gin.Context) {
	var req struct {
		ConversationIDs []models.ConversationID `json:"conversation_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	rooms := []string{realtime.UserRoom(userID)}
	for _, conversationID := range req.ConversationIDs {
		member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
		if err != nil {
			respondError(c, err, "failed to check membership")
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}
		rooms = append(rooms, realtime.ConversationRoom(conversationID))
	}

	token, err := h.tokens.IssueChannelToken(userID, rooms)
	if err != nil {
		respondError(c, err, "could not issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "rooms": rooms})
}
