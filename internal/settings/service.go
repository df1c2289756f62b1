package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/telemetry"
)

// ConfigStore хранит версии конфигурации измерений.
type ConfigStore interface {
	GetConfig(ctx context.Context) (*domain.RunConfig, error)
	PutConfig(ctx context.Context, cfg domain.RunConfig) (*domain.RunConfig, error)
}

// Rescheduler — часть планировщика, нужная настройкам.
type Rescheduler interface {
	SetNewSchedule(frequencyMinutes int, firstRun *time.Time, configID *int64)
}

// ConfigEvents уведомляет о новой версии конфигурации.
type ConfigEvents interface {
	PublishConfigUpdated(ctx context.Context, cfg *domain.RunConfig) error
}

// Service — чтение и изменение конфигурации измерений.
// Каждое принятое изменение перенастраивает планировщик.
type Service struct {
	store     ConfigStore
	scheduler Rescheduler
	events    ConfigEvents
	seedFile  string
	logger    *slog.Logger
}

// Config — зависимости Service.
type Config struct {
	Store     ConfigStore
	Scheduler Rescheduler
	Events    ConfigEvents // опционально
	SeedFile  string       // файл старой конфигурации; пусто — без миграции
	Logger    *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		events:    cfg.Events,
		seedFile:  cfg.SeedFile,
		logger:    logger,
	}
}

// Get возвращает актуальную конфигурацию.
func (s *Service) Get(ctx context.Context) (*domain.RunConfig, error) {
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("get measurement config: %w", err)
	}
	return cfg, nil
}

// Update проверяет и сохраняет новую конфигурацию.
//
// Если настройки совпадают с сохранёнными, возвращается сохранённая версия
// и планировщик не перезапускается (та же identity).
func (s *Service) Update(ctx context.Context, cfg domain.RunConfig) (*domain.RunConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FirstRun != nil {
		first := cfg.FirstRun.UTC()
		cfg.FirstRun = &first
	}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.SameSettings(current) {
		s.logger.Debug("measurement config unchanged", "config_id", current.ID)
		s.reschedule(current)
		return current, nil
	}

	stored, err := s.store.PutConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store measurement config: %w", err)
	}

	logger := telemetry.WithConfigID(s.logger, stored.ID)
	logger.Info("measurement config updated",
		"frequency_minutes", stored.FrequencyMinutes,
		"first_run", stored.FirstRun,
		"primary_camera", stored.PrimaryCamera,
		"secondary_camera", stored.SecondaryCamera,
		"sensors", stored.SensorCount,
		"stage_duration_minutes", stored.StageDurationMinutes,
	)

	s.reschedule(stored)

	if s.events != nil {
		if err := s.events.PublishConfigUpdated(ctx, stored); err != nil {
			logger.Warn("failed to publish config.updated", "error", err)
		}
	}
	return stored, nil
}

// Initialize вызывается при старте станции: переносит старый файл
// конфигурации (если есть) и запускает планировщик с актуальной версией.
func (s *Service) Initialize(ctx context.Context) (*domain.RunConfig, error) {
	if s.seedFile != "" {
		if _, err := s.SeedFromFile(ctx, s.seedFile); err != nil {
			return nil, err
		}
	}

	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.reschedule(cfg)
	s.logger.Info("scheduler initialized",
		"config_id", cfg.ID,
		"frequency_minutes", cfg.FrequencyMinutes,
	)
	return cfg, nil
}

func (s *Service) reschedule(cfg *domain.RunConfig) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.SetNewSchedule(cfg.FrequencyMinutes, cfg.FirstRun, cfg.Identity())
}
