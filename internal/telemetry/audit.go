package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"housing-chat-service/internal/models"
	"housing-chat-service/internal/realtime"
)

// AuditEmitter ships audit entries over the event broker so the audit
// pipeline consumes them alongside conversation events.
type AuditEmitter struct {
	publisher   realtime.Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

type AuditEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	Environment   string         `json:"environment"`
	RequestID     string         `json:"request_id"`
	UserID        *models.UserID `json:"user_id,omitempty"`
	Payload       AuditPayload   `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher realtime.Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *models.UserID) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, "audit-log", envelope); err != nil {
		e.log.Warn("audit publish failed", zap.String("routing_key", e.routingKey), zap.Error(err))
	}
}
