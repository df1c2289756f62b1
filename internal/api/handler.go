package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/healthcheck"
	"github.com/shaiso/Observa/internal/objectstore"
	"github.com/shaiso/Observa/internal/scheduler"
)

// RunReader читает сохранённые runs.
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListLatest(ctx context.Context, n int) ([]domain.Run, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]domain.Run, error)
}

// RunStarter запускает run вне расписания.
type RunStarter interface {
	StartRun(ctx context.Context, cfg domain.RunConfig, scheduled bool) (*domain.Run, error)
	TriggerOnce(ctx context.Context, cfg domain.RunConfig) (*domain.Run, error)
}

// SettingsService читает и обновляет конфигурацию измерений.
type SettingsService interface {
	Get(ctx context.Context) (*domain.RunConfig, error)
	Update(ctx context.Context, cfg domain.RunConfig) (*domain.RunConfig, error)
}

// SchedulerStatus — статус планировщика.
type SchedulerStatus interface {
	Status() scheduler.Status
}

// ArtifactStore отдаёт загруженные артефакты.
type ArtifactStore interface {
	Download(ctx context.Context, remoteID string) ([]byte, error)
	Metadata(ctx context.Context, remoteID string) (objectstore.ObjectMeta, error)
}

// DeviceChecker — результаты проверки устройств.
type DeviceChecker interface {
	Probes() []healthcheck.Probe
	CheckNow(ctx context.Context) []healthcheck.Probe
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs      RunReader
	starter   RunStarter
	settings  SettingsService
	scheduler SchedulerStatus
	artifacts ArtifactStore
	devices   DeviceChecker
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs      RunReader
	Starter   RunStarter
	Settings  SettingsService
	Scheduler SchedulerStatus
	Artifacts ArtifactStore // опционально
	Devices   DeviceChecker // опционально
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:      cfg.Runs,
		starter:   cfg.Starter,
		settings:  cfg.Settings,
		scheduler: cfg.Scheduler,
		artifacts: cfg.Artifacts,
		devices:   cfg.Devices,
		logger:    logger,
	}
}
