package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeRuns     Exchange = "observa.runs"
	ExchangeSettings Exchange = "observa.settings"
	ExchangeDLQ      Exchange = "observa.dlq"
)

const (
	QueueRunsTrigger     Queue = "runs.trigger"
	QueueRunsCompleted   Queue = "runs.completed"
	QueueSettingsUpdated Queue = "settings.updated"
	QueueDLQRuns         Queue = "dlq.runs"
)

const (
	RoutingKeyTrigger   RoutingKey = "trigger"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyUpdated   RoutingKey = "updated"
	RoutingKeyDLQRuns   RoutingKey = "runs"
)

type queueDecl struct {
	name Queue
	args amqp.Table
}

type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// queues возвращает очереди станции.
// runs.trigger уходит в DLQ: некорректный запрос на run не должен
// крутиться в очереди бесконечно.
func queues() []queueDecl {
	dlq := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}
	return []queueDecl{
		{QueueRunsTrigger, dlq},
		{QueueRunsCompleted, nil},
		{QueueSettingsUpdated, nil},
		{QueueDLQRuns, nil},
	}
}

func bindings() []binding {
	return []binding{
		{QueueRunsTrigger, RoutingKeyTrigger, ExchangeRuns},
		{QueueRunsCompleted, RoutingKeyCompleted, ExchangeRuns},
		{QueueSettingsUpdated, RoutingKeyUpdated, ExchangeSettings},
		{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
	}
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeRuns, ExchangeSettings, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, q := range queues() {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings() {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования при старте.
func TopologyInfo() string {
	return `
  Observa RabbitMQ Topology:

    observa.runs (direct)
    ├── runs.trigger [routing: trigger]
    │       Consumer: observa-station (manual runs)
    │       DLQ: dlq.runs
    └── runs.completed [routing: completed]
            Consumer: archive / dashboards

    observa.settings (direct)
    └── settings.updated [routing: updated]

    observa.dlq (direct)
    └── dlq.runs [routing: runs]
            Manual processing
  `
}
