package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQP relays changes through a RabbitMQ fanout exchange. Every instance consumes from
// its own exclusive, auto-deleted queue bound to the exchange.
type AMQP struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// DialAMQP connects to url and declares the exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQP, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp broadcaster: url is required")
	}
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("amqp broadcaster: exchange is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp broadcaster: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp broadcaster: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp broadcaster: declare %s: %w", exchange, err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends change to the exchange.
func (a *AMQP) Publish(ctx context.Context, change Change) error {
	body, err := encode(change)
	if err != nil {
		return err
	}
	return a.ch.PublishWithContext(ctx,
		a.exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Body:         body,
		},
	)
}

// Run consumes from a private queue until ctx is cancelled or the channel closes.
func (a *AMQP) Run(ctx context.Context, fn Handler) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp broadcaster: open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp broadcaster: queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", a.exchange, false, nil); err != nil {
		return fmt.Errorf("amqp broadcaster: queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp broadcaster: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("amqp broadcaster: delivery channel closed")
			}
			change, err := decode(msg.Body)
			if err != nil {
				a.logger.Warn("amqp broadcaster: dropping message", zap.Error(err))
				continue
			}
			fn(ctx, change)
		}
	}
}

// Ping reports a closed connection or channel.
func (a *AMQP) Ping(context.Context) error {
	if a.conn.IsClosed() || a.ch.IsClosed() {
		return errors.New("amqp broadcaster: connection closed")
	}
	return nil
}

// Close shuts the publish channel and the connection.
func (a *AMQP) Close() error {
	return errors.Join(a.ch.Close(), a.conn.Close())
}
