package realtime

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NewAMQPBroker connects to RabbitMQ and declares a topic exchange, or
// falls back to a noop binding when AMQP is disabled or unreachable. The
// service stays up either way; only cross-instance delivery is lost.
func NewAMQPBroker(amqpURL, exchange string, log *zap.Logger) Publisher {
	if amqpURL == "" {
		log.Info("amqp disabled, using noop binding", zap.String("reason", "empty amqp url"))
		return noopBroker{}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn("amqp disabled, using noop binding", zap.Error(err))
		return noopBroker{}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("amqp disabled, using noop binding", zap.Error(err))
		_ = conn.Close()
		return noopBroker{}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Warn("amqp disabled, using noop binding", zap.Error(err))
		_ = ch.Close()
		_ = conn.Close()
		return noopBroker{}
	}

	log.Info("amqp connected", zap.String("exchange", exchange))
	return &amqpBroker{conn: conn, ch: ch, exchange: exchange, log: log}
}

type amqpBroker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func (b *amqpBroker) Name() string { return "amqp" }

// Publish routes the envelope to the exchange with the room as routing key,
// so consumers bind per-room or with wildcards like "conversation.*".
func (b *amqpBroker) Publish(ctx context.Context, room, event string, payload any) error {
	body, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	return b.ch.PublishWithContext(ctx, b.exchange, room, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Subscribe binds an exclusive queue to the room's routing key and feeds
// deliveries to the handler until the returned cancel func is called.
func (b *amqpBroker) Subscribe(ctx context.Context, room string, handler Handler) (func(), error) {
	queue, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}
	if err := b.ch.QueueBind(queue.Name, room, b.exchange, false, nil); err != nil {
		return nil, err
	}
	deliveries, err := b.ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go consumeDeliveries(ctx, deliveries, done, handler, b.log)

	cancel := func() {
		close(done)
		_ = b.ch.QueueUnbind(queue.Name, room, b.exchange, nil)
	}
	return cancel, nil
}

// consumeDeliveries decodes deliveries into envelopes and hands them to
// the subscriber until the channel closes or the subscription is stopped.
// Undecodable bodies are dropped; the stream keeps flowing.
func consumeDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, done <-chan struct{}, handler Handler, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			var envelope Envelope
			if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
				log.Warn("amqp envelope decode failed", zap.Error(err))
				continue
			}
			handler(delivery.RoutingKey, envelope)
		}
	}
}

// Close releases the channel and connection.
func (b *amqpBroker) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

type noopBroker struct{}

func (noopBroker) Name() string { return "noop" }

func (noopBroker) Publish(ctx context.Context, room, event string, payload any) error {
	return nil
}

func (noopBroker) Close() error { return nil }
