package realtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"housing-chat-service/internal/models"
	"housing-chat-service/internal/observability"
)

// Publisher delivers an event to every subscriber of a room. Delivery is
// best effort: a failed publish never rolls back the write that caused it.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
	Name() string
}

// Handler consumes events delivered to a subscribed room.
type Handler func(room string, envelope Envelope)

// Subscriber is implemented by bindings that can deliver events back into
// the process, e.g. the AMQP broker consuming from its own exchange.
type Subscriber interface {
	Subscribe(ctx context.Context, room string, handler Handler) (func(), error)
}

// Envelope is the wire shape shared by every transport binding.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ConversationRoom names the room carrying one conversation's events.
func ConversationRoom(id models.ConversationID) string {
	return fmt.Sprintf("conversation.%d", id)
}

// UserRoom names the per-user room for badges and presence.
func UserRoom(id models.UserID) string {
	return fmt.Sprintf("user.%d", id)
}

// Fanout publishes each event through every configured binding. Binding
// failures are counted and logged, never returned: clients that miss an
// event recover on their next fetch.
type Fanout struct {
	bindings []Publisher
	log      *zap.Logger
}

// NewFanout builds a Fanout over the given bindings.
func NewFanout(log *zap.Logger, bindings ...Publisher) *Fanout {
	return &Fanout{bindings: bindings, log: log}
}

// Publish delivers the event to all bindings.
func (f *Fanout) Publish(ctx context.Context, room, event string, payload any) error {
	for _, binding := range f.bindings {
		if err := binding.Publish(ctx, room, event, payload); err != nil {
			observability.IncFanoutError(binding.Name())
			f.log.Warn("fanout publish failed",
				zap.String("binding", binding.Name()),
				zap.String("room", room),
				zap.String("event", event),
				zap.Error(err))
		}
	}
	return nil
}

// Name identifies the composite binding.
func (f *Fanout) Name() string { return "fanout" }
