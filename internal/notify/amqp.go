package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultQueue is the durable queue push notifications are routed through.
const DefaultQueue = "push_notifications"

// AMQPDispatcher queues notifications on RabbitMQ.
type AMQPDispatcher struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPDispatcher(url, queue string) (*AMQPDispatcher, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPDispatcher{conn: conn, queue: queue, ch: ch}, nil
}

func (d *AMQPDispatcher) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.ch.PublishWithContext(
		ctx,
		"",
		d.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume streams queued notifications on a dedicated channel. Deliveries are
// acked once decoded; malformed ones are dropped.
func (d *AMQPDispatcher) Consume(ctx context.Context, logger *zap.Logger) (<-chan Notification, error) {
	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	msgs, err := ch.Consume(d.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case dlv, ok := <-msgs:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal(dlv.Body, &n); err != nil {
					logger.Warn("invalid push payload", zap.Error(err))
					_ = dlv.Nack(false, false)
					continue
				}
				_ = dlv.Ack(false)
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch != nil {
		d.ch.Close()
	}
	return d.conn.Close()
}
