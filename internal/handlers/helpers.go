package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/observability"
)

// respondError maps a coded error to its HTTP status. Uncoded errors stay
// opaque to the client.
func respondError(c *gin.Context, err error, fallback string) {
	status := apperrors.HTTPStatus(err)
	message := fallback
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown && code != apperrors.CodeInternal {
		message = err.Error()
	}
	c.JSON(status, gin.H{"error": message})
}

func currentUserID(c *gin.Context) models.UserID {
	userID, _ := c.MustGet("userID").(models.UserID)
	return userID
}

func requestIDFromContext(c *gin.Context) string {
	if requestID := observability.RequestIDFromRequest(c.Request); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}
