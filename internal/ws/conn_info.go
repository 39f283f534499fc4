package ws

import (
	"time"

	"housing-chat-service/internal/models"
)

type ConnInfo struct {
	ConnID      string
	UserID      models.UserID
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
