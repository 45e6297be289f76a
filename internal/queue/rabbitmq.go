package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ is a Broker backed by a durable queue bound to a direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	exchange   string
	routingKey string
	prefetch   int
	logger     *slog.Logger

	// amqp channels must not be used for concurrent publishes.
	publishMu sync.Mutex
}

// RabbitMQConfig names the topology declared on connect.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
	// Prefetch bounds unacknowledged deliveries per consumer channel.
	Prefetch int
	Logger   *slog.Logger
}

// NewRabbitMQ dials the broker and declares the exchange, queue and binding.
func NewRabbitMQ(cfg RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		queueName:  cfg.Queue,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		prefetch:   prefetch,
		logger:     logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(
		cfg.Queue,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// Publish sends msg as a persistent message and waits for nothing beyond the write.
func (r *RabbitMQ) Publish(ctx context.Context, msg TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal task message: %w", err)
	}

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.TaskID,
			Type:         msg.Kind,
			Timestamp:    msg.EnqueuedAt,
			Body:         body,
		},
	)
}

// Consume opens a dedicated channel with manual acknowledgement and the configured prefetch.
// Undecodable messages are rejected without requeue.
func (r *RabbitMQ) Consume(ctx context.Context) (<-chan Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		r.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume %s: %w", r.queueName, err)
	}

	out := make(chan Delivery)

	go func() {
		defer close(out)
		defer ch.Close()

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var tm TaskMessage
				if err := json.Unmarshal(msg.Body, &tm); err != nil {
					r.logger.Error("dropping undecodable task message",
						"message_id", msg.MessageId, "error", err)
					_ = msg.Nack(false, false)
					continue
				}
				d := NewDelivery(tm, msg.Redelivered,
					func() error { return msg.Ack(false) },
					func(requeue bool) error { return msg.Nack(false, requeue) },
				)
				select {
				case out <- d:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *RabbitMQ) Ping(_ context.Context) error {
	if r.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		_ = r.conn.Close()
		return err
	}
	return r.conn.Close()
}
