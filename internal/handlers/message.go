package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"housing-chat-service/internal/models"
	"housing-chat-service/internal/observability"
	"housing-chat-service/internal/realtime"
	"housing-chat-service/internal/repositories"
	"housing-chat-service/internal/storage"
	"housing-chat-service/internal/unread"
)

// MessageHandler manages the message log endpoints of a conversation.
type MessageHandler struct {
	convRepo     repositories.ConversationRepository
	msgRepo      repositories.MessageRepository
	reactionRepo repositories.ReactionRepository
	uploader     storage.Uploader
	fanout       realtime.Publisher
	aggregator   *unread.Aggregator
	log          *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, reactionRepo repositories.ReactionRepository, uploader storage.Uploader, fanout realtime.Publisher, aggregator *unread.Aggregator, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		reactionRepo: reactionRepo,
		uploader:     uploader,
		fanout:       fanout,
		aggregator:   aggregator,
		log:          log,
	}
}

func messageIDParam(c *gin.Context) (models.MessageID, bool) {
	id, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return models.MessageID(id), true
}

// requireMember loads the conversation id and enforces membership.
func (h *MessageHandler) requireMember(c *gin.Context) (models.ConversationID, models.UserID, bool) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return 0, 0, false
	}
	userID := currentUserID(c)

	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err, "failed to check membership")
		return 0, 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return 0, 0, false
	}
	return conversationID, userID, true
}

// resolveMessage fetches the message and rejects ids that belong to a
// different conversation, so a crafted URL cannot reach across rooms.
func (h *MessageHandler) resolveMessage(c *gin.Context, conversationID models.ConversationID) (models.Message, bool) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return models.Message{}, false
	}
	msg, err := h.msgRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err, "failed to load message")
		return models.Message{}, false
	}
	if msg.ConversationID != conversationID {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return models.Message{}, false
	}
	return msg, true
}

// ListMessages returns a page of the conversation history the caller can
// see. Pagination is cursor based; ?newest=true walks backwards from the
// latest message.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	page := repositories.Pagination{
		Cursor: c.Query("cursor"),
		Limit:  limit,
		Newest: c.Query("newest") == "true",
	}

	messages, next, err := h.msgRepo.ListVisible(c.Request.Context(), conversationID, userID, page)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "next_cursor": next})
}

type postMessageRequest struct {
	Type     models.MessageType `json:"type" binding:"required"`
	Content  string             `json:"content"`
	FileURL  string             `json:"file_url"`
	FileName string             `json:"file_name"`
	FileSize int64              `json:"file_size"`
	Duration int                `json:"duration_seconds"`
	ReplyTo  *models.MessageID  `json:"reply_to_id"`
}

// PostMessage appends a message and fans it out to the room. The append
// commits before any notification; a fan-out failure never loses the
// message.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// A reply must thread inside this conversation; any known message id
	// would satisfy the foreign key.
	if req.ReplyTo != nil {
		parent, err := h.msgRepo.GetMessage(c.Request.Context(), *req.ReplyTo)
		if err != nil {
			respondError(c, err, "failed to resolve reply target")
			return
		}
		if parent.ConversationID != conversationID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reply_to must reference a message in this conversation"})
			return
		}
	}

	draft := models.MessageDraft{
		Type:      req.Type,
		Content:   req.Content,
		FileURL:   req.FileURL,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
		Duration:  req.Duration,
		ReplyToID: req.ReplyTo,
	}
	h.appendAndNotify(c, conversationID, userID, draft)
}

// PostAttachment uploads a file and appends the message referencing it.
func (h *MessageHandler) PostAttachment(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}

	messageType := models.MessageType(c.PostForm("type"))
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	result, err := h.uploader.Upload(c.Request.Context(), "chat-attachments", header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(c, err, "attachment upload failed")
		return
	}

	duration, _ := strconv.Atoi(c.PostForm("duration_seconds"))
	draft := models.MessageDraft{
		Type:     messageType,
		FileURL:  result.URL,
		FileName: header.Filename,
		FileSize: header.Size,
		Duration: duration,
	}
	h.appendAndNotify(c, conversationID, userID, draft)
}

func (h *MessageHandler) appendAndNotify(c *gin.Context, conversationID models.ConversationID, userID models.UserID, draft models.MessageDraft) {
	msg, err := h.msgRepo.Append(c.Request.Context(), conversationID, userID, draft)
	if err != nil {
		respondError(c, err, "could not send message")
		return
	}
	if err := h.convRepo.TouchLastMessage(c.Request.Context(), conversationID, msg.ID, msg.CreatedAt); err != nil {
		h.log.Error("touch last message failed", zap.Int64("conversation_id", int64(conversationID)), zap.Error(err))
	}

	observability.IncMessageCreated()
	_ = h.fanout.Publish(c.Request.Context(), realtime.ConversationRoom(conversationID), models.EventMessageCreated, models.ConversationEvent{
		ConversationID: conversationID,
		Message:        &msg,
	})
	h.aggregator.MessageCreated(c.Request.Context(), conversationID, userID)

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// EditMessage rewrites the caller's own text message.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}
	msg, ok := h.resolveMessage(c, conversationID)
	if !ok {
		return
	}
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can edit a message"})
		return
	}
	if msg.Type != models.MessageTypeText {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only text messages can be edited"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edited, err := h.msgRepo.EditContent(c.Request.Context(), msg.ID, userID, req.Content)
	if err != nil {
		respondError(c, err, "could not edit message")
		return
	}

	_ = h.fanout.Publish(c.Request.Context(), realtime.ConversationRoom(conversationID), models.EventMessageUpdated, models.ConversationEvent{
		ConversationID: conversationID,
		Message:        &edited,
	})
	c.JSON(http.StatusOK, gin.H{"message": edited})
}

// DeleteMessageForMe hides one message from the caller only.
func (h *MessageHandler) DeleteMessageForMe(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}
	msg, ok := h.resolveMessage(c, conversationID)
	if !ok {
		return
	}

	if err := h.msgRepo.HideForUser(c.Request.Context(), msg.ID, userID); err != nil {
		respondError(c, err, "could not delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ToggleReaction adds the caller's (emoji, user) reaction when absent and
// removes it when present, then broadcasts the new reaction set.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}
	msg, ok := h.resolveMessage(c, conversationID)
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.reactionRepo.Toggle(c.Request.Context(), msg.ID, userID, req.Emoji)
	if err != nil {
		respondError(c, err, "could not toggle reaction")
		return
	}
	reactions, err := h.reactionRepo.ListForMessage(c.Request.Context(), msg.ID)
	if err != nil {
		respondError(c, err, "could not toggle reaction")
		return
	}

	_ = h.fanout.Publish(c.Request.Context(), realtime.ConversationRoom(conversationID), models.EventMessageUpdated, models.ConversationEvent{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Reactions:      reactions,
	})
	c.JSON(http.StatusOK, gin.H{"added": added, "reactions": reactions})
}

// MarkMessageRead records the caller's read receipt for one message.
// Repeating the call changes nothing.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	conversationID, userID, ok := h.requireMember(c)
	if !ok {
		return
	}
	msg, ok := h.resolveMessage(c, conversationID)
	if !ok {
		return
	}

	if err := h.msgRepo.MarkRead(c.Request.Context(), msg.ID, userID); err != nil {
		respondError(c, err, "could not mark message read")
		return
	}

	_ = h.fanout.Publish(c.Request.Context(), realtime.ConversationRoom(conversationID), models.EventReadReceiptUpdated, models.ConversationEvent{
		ConversationID: conversationID,
		UserID:         userID,
		MessageIDs:     []models.MessageID{msg.ID},
	})
	c.JSON(http.StatusOK, gin.H{"read": true})
}
