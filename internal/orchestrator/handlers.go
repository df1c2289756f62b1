package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/mq"
)

// NewTriggerHandler возвращает обработчик очереди runs.trigger.
//
// Сообщение без конфигурации запускает run с сохранённой конфигурацией,
// как POST /scheduler/trigger. Невалидная конфигурация отклоняется в DLQ.
func NewTriggerHandler(orch *Orchestrator, configs ConfigSource) mq.Handler {
	return func(ctx context.Context, delivery *mq.Delivery) error {
		payload, err := mq.ParsePayload[mq.RunTriggerPayload](&delivery.Message)
		if err != nil {
			return fmt.Errorf("%w: parse run.trigger payload: %w", mq.ErrReject, err)
		}

		logger := orch.logger.With("message_id", delivery.Message.ID, "requested_by", payload.RequestedBy)
		logger.Info("received run.trigger")

		var run *domain.Run
		if payload.Config != nil {
			run, err = orch.TriggerOnce(ctx, *payload.Config)
		} else {
			var cfg *domain.RunConfig
			cfg, err = configs.GetConfig(ctx)
			if err != nil {
				return fmt.Errorf("load measurement config: %w", err)
			}
			run, err = orch.StartRun(ctx, *cfg, false)
		}

		switch {
		case errors.Is(err, domain.ErrConfiguration):
			return fmt.Errorf("%w: %w", mq.ErrReject, err)
		case err != nil:
			return err
		}

		logger.Info("triggered run finished", "run_id", run.ID, "failed_stages", len(run.Failed()))
		return nil
	}
}
