package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"housing-chat-service/internal/auth"
	"housing-chat-service/internal/models"
	"housing-chat-service/internal/observability"
	"housing-chat-service/internal/presence"
	"housing-chat-service/internal/realtime"
	"housing-chat-service/internal/repositories"
)

// Handler upgrades websocket connections onto conversation rooms.
type Handler struct {
	hub      *Hub
	convRepo repositories.ConversationRepository
	tokens   *auth.TokenManager
	presence presence.Store
	fanout   realtime.Publisher
	log      *zap.Logger
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, convRepo repositories.ConversationRepository, tokens *auth.TokenManager, store presence.Store, fanout realtime.Publisher, log *zap.Logger) *Handler {
	return &Handler{hub: hub, convRepo: convRepo, tokens: tokens, presence: store, fanout: fanout, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, checks membership and registers the client on the
// conversation room and the caller's personal room.
func (h *Handler) Handle(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	convID := models.ConversationID(conversationID)
	room := realtime.ConversationRoom(convID)

	ctx, span := otel.Tracer("housing-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c, room)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.convRepo.IsParticipant(ctx, convID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	personalRoom := realtime.UserRoom(userID)
	h.hub.Join(room, conn, info)
	h.hub.Join(personalRoom, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.announcePresence(ctx, convID, userID)

	go h.readLoop(convID, room, personalRoom, conn, info)
}

func (h *Handler) authenticate(c *gin.Context, room string) (models.UserID, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
	}
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return 0, auth.ErrInvalidToken
	}

	if userID, err := h.tokens.ParseAccessToken(token); err == nil {
		return userID, nil
	}
	// Channel tokens carry an explicit room grant.
	userID, rooms, err := h.tokens.ParseChannelToken(token)
	if err != nil {
		return 0, err
	}
	for _, granted := range rooms {
		if granted == room {
			return userID, nil
		}
	}
	return 0, auth.ErrInvalidToken
}

// announcePresence publishes presence-changed the first time any of the
// user's connections comes up. Extra tabs and devices stay silent.
func (h *Handler) announcePresence(ctx context.Context, convID models.ConversationID, userID models.UserID) {
	becameOnline, err := h.presence.Connect(ctx, userID)
	if err != nil {
		h.log.Warn("presence connect failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
		return
	}
	if !becameOnline {
		return
	}
	online := true
	_ = h.fanout.Publish(ctx, realtime.ConversationRoom(convID), models.EventPresenceChanged, models.ConversationEvent{
		ConversationID: convID,
		UserID:         userID,
		Online:         &online,
	})
}

func (h *Handler) readLoop(convID models.ConversationID, room, personalRoom string, conn *websocket.Conn, info ConnInfo) {
	defer func() {
		h.hub.Leave(room, conn)
		h.hub.Leave(personalRoom, conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		conn.Close()

		ctx := context.Background()
		becameOffline, lastSeen, err := h.presence.Disconnect(ctx, info.UserID)
		if err != nil {
			h.log.Warn("presence disconnect failed", zap.Int64("user_id", int64(info.UserID)), zap.Error(err))
			return
		}
		if becameOffline {
			online := false
			_ = h.fanout.Publish(ctx, room, models.EventPresenceChanged, models.ConversationEvent{
				ConversationID: convID,
				UserID:         info.UserID,
				Online:         &online,
				LastSeen:       &lastSeen,
			})
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.log.Debug("websocket read ended",
					zap.String("conn_id", info.ConnID),
					zap.Duration("connected_for", time.Since(info.ConnectedAt)),
					zap.Error(err))
			}
			return
		}
	}
}
