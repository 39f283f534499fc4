package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"housing-chat-service/internal/directory"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/repositories"
	"housing-chat-service/internal/telemetry"
	"housing-chat-service/internal/unread"
)

// ConversationHandler manages the conversation registry endpoints.
type ConversationHandler struct {
	convRepo   repositories.ConversationRepository
	users      directory.Directory
	aggregator *unread.Aggregator
	audit      *telemetry.AuditEmitter
	log        *zap.Logger
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convRepo repositories.ConversationRepository, users directory.Directory, aggregator *unread.Aggregator, audit *telemetry.AuditEmitter, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		convRepo:   convRepo,
		users:      users,
		aggregator: aggregator,
		audit:      audit,
		log:        log,
	}
}

func conversationIDParam(c *gin.Context) (models.ConversationID, bool) {
	id, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return models.ConversationID(id), true
}

type participantResponse struct {
	UserID models.UserID `json:"user_id"`
	Name   string        `json:"name,omitempty"`
}

type conversationResponse struct {
	models.ConversationSummary
	Participants []participantResponse `json:"participants"`
}

// ListConversations returns the caller's non-archived conversations,
// newest activity first, decorated with participant names. A directory
// outage degrades the names, never the list.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := currentUserID(c)

	summaries, err := h.convRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to load conversations")
		return
	}

	idSet := make(map[models.UserID]struct{})
	for _, summary := range summaries {
		for _, participant := range summary.Participants {
			idSet[participant] = struct{}{}
		}
	}
	ids := make([]models.UserID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	profiles, err := h.users.BulkUsers(c.Request.Context(), ids)
	if err != nil {
		h.log.Warn("directory lookup failed", zap.Error(err))
		profiles = map[models.UserID]models.User{}
	}

	responses := make([]conversationResponse, 0, len(summaries))
	for _, summary := range summaries {
		participants := make([]participantResponse, 0, len(summary.Participants))
		for _, participant := range summary.Participants {
			participants = append(participants, participantResponse{
				UserID: participant,
				Name:   profiles[participant].Name,
			})
		}
		responses = append(responses, conversationResponse{
			ConversationSummary: summary,
			Participants:        participants,
		})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": responses})
}

type participantDetail struct {
	UserID  models.UserID `json:"user_id"`
	Name    string        `json:"name,omitempty"`
	IsAdmin bool          `json:"is_admin"`
}

// GetConversation returns one conversation with its full membership,
// including admin flags for groups.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	userID := currentUserID(c)

	conv, err := h.convRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err, "failed to load conversation")
		return
	}
	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to load conversation")
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	rows, err := h.convRepo.Participants(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err, "failed to load conversation")
		return
	}
	ids := make([]models.UserID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	profiles, err := h.users.BulkUsers(c.Request.Context(), ids)
	if err != nil {
		h.log.Warn("directory lookup failed", zap.Error(err))
		profiles = map[models.UserID]models.User{}
	}

	details := make([]participantDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, participantDetail{
			UserID:  row.UserID,
			Name:    profiles[row.UserID].Name,
			IsAdmin: row.IsAdmin,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "participants": details})
}

// StartDirect creates or returns the canonical direct conversation with
// another user, optionally scoped to a property listing.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		ParticipantID models.UserID      `json:"participant_id" binding:"required"`
		PropertyID    *models.PropertyID `json:"property_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	if _, err := h.users.FindByID(c.Request.Context(), req.ParticipantID); err != nil {
		respondError(c, err, "failed to resolve participant")
		return
	}

	conv, err := h.convRepo.GetOrCreateDirect(c.Request.Context(), userID, req.ParticipantID, req.PropertyID)
	if err != nil {
		respondError(c, err, "could not create conversation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// CreateGroup creates a group conversation with the caller as admin.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string          `json:"name" binding:"required"`
		ImageURL  string          `json:"image_url"`
		MemberIDs []models.UserID `json:"member_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	conv, err := h.convRepo.CreateGroup(c.Request.Context(), userID, req.Name, req.ImageURL, req.MemberIDs)
	if err != nil {
		respondError(c, err, "could not create group")
		return
	}

	h.audit.Emit(c.Request.Context(), "info", "group conversation created", requestIDFromContext(c), &userID)
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// Archive hides the conversation from the caller's list until new
// activity or an explicit unarchive.
func (h *ConversationHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive returns the conversation to the caller's list.
func (h *ConversationHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ConversationHandler) setArchived(c *gin.Context, archived bool) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	userID := currentUserID(c)

	if err := h.convRepo.SetArchived(c.Request.Context(), conversationID, userID, archived); err != nil {
		respondError(c, err, "could not update archive state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// DeleteForMe hides the whole conversation history from the caller.
// Other participants keep every message.
func (h *ConversationHandler) DeleteForMe(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	userID := currentUserID(c)

	if _, err := h.convRepo.GetConversation(c.Request.Context(), conversationID); err != nil {
		respondError(c, err, "could not delete conversation")
		return
	}
	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err, "could not delete conversation")
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	if err := h.convRepo.SoftDeleteForUser(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err, "could not delete conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// MarkRead zeroes the caller's unread badge and marks every visible
// message as read. Safe to call on every conversation open.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	userID := currentUserID(c)

	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err, "could not mark conversation read")
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	if err := h.aggregator.ConversationOpened(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err, "could not mark conversation read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}
