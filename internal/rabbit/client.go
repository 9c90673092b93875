package rabbit

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

// ErrDrop marks a message that can never be processed; it is rejected without requeue.
var ErrDrop = errors.New("drop message")

type Config struct {
	URL      string
	Exchange string
	Queue    string
	// Delayed declares an x-delayed-message exchange; it needs the delayed
	// message plugin on the broker.
	Delayed  bool
	Prefetch int
}

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	delayed  bool
}

type Rabbiter interface {
	Close()
	Publish(message []byte, delaySeconds int) error
	Consume(ctx context.Context, handler func([]byte) error) error
}

func NewRabbit(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		zlog.Logger.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	client := &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		delayed:  cfg.Delayed,
	}

	kind, args := "direct", amqp.Table(nil)
	if cfg.Delayed {
		kind, args = "x-delayed-message", amqp.Table{"x-delayed-type": "direct"}
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		kind,
		true,
		false,
		false,
		false,
		args,
	); err != nil {
		client.Close()
		zlog.Logger.Error().Err(err).Msg("failed to declare exchange")
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		client.Close()
		zlog.Logger.Error().Err(err).Msg("failed to declare queue")
		return nil, err
	}

	if err := ch.QueueBind(
		cfg.Queue,
		"",
		cfg.Exchange,
		false,
		nil,
	); err != nil {
		client.Close()
		zlog.Logger.Error().Err(err).Msg("failed to bind queue")
		return nil, err
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			client.Close()
			zlog.Logger.Error().Err(err).Msg("failed to set prefetch")
			return nil, err
		}
	}

	zlog.Logger.Info().Msgf("RabbitMQ initialized (exchange=%s, queue=%s, delayed=%t)", cfg.Exchange, cfg.Queue, cfg.Delayed)

	return client, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	zlog.Logger.Info().Msg("RabbitMQ connection closed")
}

// Publish sends a message. The delay is only honoured on a delayed exchange.
func (c *Client) Publish(message []byte, delaySeconds int) error {
	headers := amqp.Table{}
	if delaySeconds > 0 && c.delayed {
		headers["x-delay"] = int32(delaySeconds * 1000)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)

	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to publish message to RabbitMQ")
	} else {
		zlog.Logger.Debug().Msgf("Message published to exchange=%s delay=%ds", c.exchange, delaySeconds)
	}
	return err
}

// Consume runs handler for each delivery until ctx is done. A handler error
// requeues the message unless it wraps ErrDrop.
func (c *Client) Consume(ctx context.Context, handler func([]byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to start consuming messages")
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					zlog.Logger.Warn().Msg("RabbitMQ delivery channel closed")
					return
				}
				if err := handler(d.Body); err != nil {
					requeue := !errors.Is(err, ErrDrop)
					zlog.Logger.Warn().Err(err).Bool("requeue", requeue).Msg("failed to process message")
					_ = d.Nack(false, requeue)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	zlog.Logger.Info().Msgf("Started consuming from queue %s", c.queue)
	return nil
}
