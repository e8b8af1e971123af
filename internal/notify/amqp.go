// README: AMQP fan-out of notification events. Downstream consumers
// (websocket gateway, SMS worker) bind queues on notify.<event> keys.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"campusride/internal/types"
)

const notificationsExchange = "campusride.notifications"

type AMQPNotifier struct {
	ch *amqp.Channel
}

var _ Notifier = (*AMQPNotifier)(nil)

// NewAMQPNotifier declares the topic exchange on the given channel.
func NewAMQPNotifier(ch *amqp.Channel) (*AMQPNotifier, error) {
	err := ch.ExchangeDeclare(notificationsExchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{ch: ch}, nil
}

type amqpEnvelope struct {
	UserID  types.ID          `json:"user_id"`
	Event   string            `json:"event"`
	Payload map[string]string `json:"payload"`
	At      time.Time         `json:"at"`
}

func (n *AMQPNotifier) Notify(ctx context.Context, userID types.ID, event string, payload map[string]string) error {
	body, err := json.Marshal(amqpEnvelope{
		UserID:  userID,
		Event:   event,
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return n.ch.PublishWithContext(ctx,
		notificationsExchange,
		"notify."+event,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
