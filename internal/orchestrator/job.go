package orchestrator

import (
	"context"
	"fmt"

	"github.com/shaiso/Observa/internal/domain"
)

// ConfigSource возвращает текущую сохранённую конфигурацию.
type ConfigSource interface {
	GetConfig(ctx context.Context) (*domain.RunConfig, error)
}

// ScheduledJob связывает планировщик с оркестратором:
// на каждом срабатывании читает актуальную конфигурацию и запускает run.
type ScheduledJob struct {
	orch    *Orchestrator
	configs ConfigSource
}

// NewScheduledJob создаёт job для scheduler.Config.Job.
func NewScheduledJob(orch *Orchestrator, configs ConfigSource) *ScheduledJob {
	return &ScheduledJob{orch: orch, configs: configs}
}

// Run реализует scheduler.Job.
func (j *ScheduledJob) Run(ctx context.Context, scheduled bool) error {
	cfg, err := j.configs.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("load measurement config: %w", err)
	}

	if _, err := j.orch.StartRun(ctx, *cfg, scheduled); err != nil {
		return err
	}
	return nil
}
