package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/telemetry"
)

// MessageType — тип сообщения в очереди.
type MessageType string

const (
	MessageTypeRunTrigger    MessageType = "run.trigger"
	MessageTypeRunCompleted  MessageType = "run.completed"
	MessageTypeConfigUpdated MessageType = "config.updated"
)

// Message — конверт всех сообщений станции.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunTriggerPayload — запрос на ручной run.
// Config == nil означает «использовать сохранённую конфигурацию».
type RunTriggerPayload struct {
	Config      *domain.RunConfig `json:"config,omitempty"`
	RequestedBy string            `json:"requested_by,omitempty"`
}

// RunCompletedPayload — итог run для внешних потребителей.
type RunCompletedPayload struct {
	RunID       uuid.UUID            `json:"run_id"`
	Scheduled   bool                 `json:"scheduled"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Results     []domain.StageResult `json:"results"`
	Artifacts   []domain.Artifact    `json:"artifacts"`
	Failed      int                  `json:"failed_stages"`
}

// ConfigUpdatedPayload — новая версия конфигурации измерений.
type ConfigUpdatedPayload struct {
	ConfigID         int64      `json:"config_id"`
	FrequencyMinutes int        `json:"measurement_frequency"`
	FirstRun         *time.Time `json:"first_measurement,omitempty"`
	domain.Toggles
}

// NewRunCompletedPayload собирает payload из завершённого run.
func NewRunCompletedPayload(run *domain.Run) RunCompletedPayload {
	return RunCompletedPayload{
		RunID:       run.ID,
		Scheduled:   run.Scheduled,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
		Results:     run.Results,
		Artifacts:   run.Artifacts,
		Failed:      len(run.Failed()),
	}
}

// NewConfigUpdatedPayload собирает payload из сохранённой конфигурации.
func NewConfigUpdatedPayload(cfg *domain.RunConfig) ConfigUpdatedPayload {
	return ConfigUpdatedPayload{
		ConfigID:         cfg.ID,
		FrequencyMinutes: cfg.FrequencyMinutes,
		FirstRun:         cfg.FirstRun,
		Toggles:          cfg.Toggles(),
	}
}

// NewMessage оборачивает payload в конверт с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// encode сериализует сообщение в persistent AMQP publishing.
func encode(msg *Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}, nil
}

// Publisher публикует события станции.
type Publisher struct {
	conn    *Connection
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewPublisher создаёт Publisher. metrics может быть nil.
func NewPublisher(conn *Connection, logger *slog.Logger, metrics *telemetry.Metrics) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger, metrics: metrics}
}

// Publish отправляет сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	pub, err := encode(msg)
	if err != nil {
		return err
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, pub)
	})
	p.metrics.EventPublished(string(msg.Type), err)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishRunCompleted реализует orchestrator.EventPublisher.
func (p *Publisher) PublishRunCompleted(ctx context.Context, run *domain.Run) error {
	msg := NewMessage(MessageTypeRunCompleted, NewRunCompletedPayload(run))
	return p.Publish(ctx, ExchangeRuns, RoutingKeyCompleted, msg)
}

// PublishConfigUpdated уведомляет о новой версии конфигурации.
func (p *Publisher) PublishConfigUpdated(ctx context.Context, cfg *domain.RunConfig) error {
	msg := NewMessage(MessageTypeConfigUpdated, NewConfigUpdatedPayload(cfg))
	return p.Publish(ctx, ExchangeSettings, RoutingKeyUpdated, msg)
}

// PublishRunTrigger ставит запрос на ручной run в очередь runs.trigger.
func (p *Publisher) PublishRunTrigger(ctx context.Context, payload RunTriggerPayload) error {
	msg := NewMessage(MessageTypeRunTrigger, payload)
	return p.Publish(ctx, ExchangeRuns, RoutingKeyTrigger, msg)
}
