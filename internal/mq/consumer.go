package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReject — обработчик отказывается от сообщения навсегда
// (некорректный payload, невалидная конфигурация). Сообщение уходит в DLQ.
var ErrReject = errors.New("mq: message rejected")

// Handler обрабатывает одно сообщение.
// nil → ack, ошибка с ErrReject → DLQ, иная ошибка → одна повторная доставка.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Ack подтверждает обработку.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение. requeue=false отправляет его в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Consumer читает очередь и передаёт сообщения Handler по одному.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancel context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int // default: 1
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокируется до отмены ctx или Stop.
// Разрыв соединения не завершает Start: consumer ждёт переподключения.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// Stop останавливает Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNotConnected
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.settle(raw, c.dispatch(ctx, raw))
		}
	}
}

// outcome — решение по сообщению.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDeadLetter
)

// dispatch декодирует сообщение и вызывает handler.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) outcome {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		return outcomeDeadLetter
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message")

	err := c.handler(ctx, &Delivery{Message: msg, Raw: raw})
	return decide(err, raw.Redelivered, logger)
}

// decide выбирает ack/requeue/DLQ по результату обработчика.
// Повторно доставленное сообщение не возвращается в очередь второй раз.
func decide(err error, redelivered bool, logger *slog.Logger) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrReject):
		logger.Warn("message rejected", "error", err)
		return outcomeDeadLetter
	case redelivered:
		logger.Error("handler failed again, dead-lettering", "error", err)
		return outcomeDeadLetter
	default:
		logger.Error("handler failed, requeueing", "error", err)
		return outcomeRequeue
	}
}

func (c *Consumer) settle(raw amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "error", err)
	}
}

// ParsePayload декодирует payload сообщения в T.
// После json.Unmarshal конверта payload — map[string]any, поэтому
// он сериализуется повторно.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
