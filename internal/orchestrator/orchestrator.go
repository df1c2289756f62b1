package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/telemetry"
)

const defaultImageFormat = "PNG"

// CaptureDevice — камера, выдающая один снимок за подключение.
// Если устройство реализует sync.Locker, capture держит блокировку
// от Connect до Disconnect (см. device.Session).
type CaptureDevice interface {
	Connect(ctx context.Context) error
	CaptureBlob(ctx context.Context, format string) ([]byte, error)
	Disconnect() error
}

// SensorArray — набор акустических датчиков с номерами 1..N.
type SensorArray interface {
	ReadSensor(ctx context.Context, sensor int, duration time.Duration) ([]byte, error)
}

// UploadStore — хранилище артефактов вне станции.
type UploadStore interface {
	Authenticate(ctx context.Context) error
	EnsurePath(ctx context.Context, path string) (string, error)
	Upload(ctx context.Context, handle, name string, data []byte, mime string) (string, error)
}

// RunRepository сохраняет runs и их результаты.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	AppendArtifact(ctx context.Context, runID uuid.UUID, name, remoteID string) error
	AppendStageResult(ctx context.Context, runID uuid.UUID, seq int, res domain.StageResult) error
	MarkCompleted(ctx context.Context, runID uuid.UUID, at time.Time) error
}

// EventPublisher уведомляет внешние системы о завершённых runs.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, run *domain.Run) error
}

// Orchestrator выполняет один run: этапы по порядку, ошибки этапов
// записываются в StageResult и не прерывают run.
//
// Этапы выполняются строго последовательно: камеры и датчики
// делят одну шину и канал связи.
type Orchestrator struct {
	runs      RunRepository
	store     UploadStore
	primary   CaptureDevice
	secondary CaptureDevice
	sensors   SensorArray
	events    EventPublisher

	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	imageFormat string

	// Active runs — runs в процессе выполнения (runID → run)
	activeRuns map[uuid.UUID]*domain.Run
	mu         sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Хранилища
	Runs  RunRepository
	Store UploadStore

	// Устройства. Nil-устройство даёт ошибку этапа, а не панику.
	Primary   CaptureDevice
	Secondary CaptureDevice
	Sensors   SensorArray

	// Events — опционально
	Events EventPublisher

	Clock       clockwork.Clock // default: real clock
	Logger      *slog.Logger
	Metrics     *telemetry.Metrics
	ImageFormat string // default: PNG
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	format := cfg.ImageFormat
	if format == "" {
		format = defaultImageFormat
	}

	return &Orchestrator{
		runs:        cfg.Runs,
		store:       cfg.Store,
		primary:     cfg.Primary,
		secondary:   cfg.Secondary,
		sensors:     cfg.Sensors,
		events:      cfg.Events,
		clock:       clock,
		logger:      logger,
		metrics:     cfg.Metrics,
		imageFormat: format,
		activeRuns:  make(map[uuid.UUID]*domain.Run),
	}
}

// StartRun выполняет run с заданной конфигурацией.
//
// 1. Сохраняет run со снимком переключателей (единственная фатальная ошибка)
// 2. Выполняет включённые этапы: primary camera, secondary camera, датчики 1..N
// 3. Закрывает run и публикует run.completed
//
// Возвращённый run содержит результаты всех этапов, в том числе ошибочных.
func (o *Orchestrator) StartRun(ctx context.Context, cfg domain.RunConfig, scheduled bool) (*domain.Run, error) {
	run := domain.NewRun(cfg, scheduled, o.clock.Now())
	logger := telemetry.WithRunID(o.logger, run.ID.String())

	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("%w: create run: %w", ErrPersistence, err)
	}

	o.addActiveRun(run)
	defer o.removeActiveRun(run.ID)

	logger.Info("run started",
		"scheduled", scheduled,
		"primary_camera", run.Toggles.PrimaryCamera,
		"secondary_camera", run.Toggles.SecondaryCamera,
		"sensors", run.Toggles.SensorCount,
	)

	// Записи о run должны попасть в БД, даже если планировщик
	// отменил цикл посреди выполнения.
	persistCtx := context.WithoutCancel(ctx)

	for _, st := range plan(run.Toggles) {
		res := o.execute(ctx, run, st)
		o.record(persistCtx, run, res, logger)
	}

	if err := run.Complete(o.clock.Now()); err != nil {
		logger.Error("failed to complete run", "error", err)
	}
	if err := o.runs.MarkCompleted(persistCtx, run.ID, *run.CompletedAt); err != nil {
		logger.Warn("failed to mark run completed", "error", err)
	}

	o.metrics.RunFinished(scheduled, run.Duration())
	o.publish(persistCtx, run, logger)

	logger.Info("run completed",
		"stages", len(run.Results),
		"artifacts", run.ArtifactCount(),
		"failed_stages", len(run.Failed()),
		"duration", run.Duration(),
	)

	return run, nil
}

// TriggerOnce запускает run вне расписания с конфигурацией вызывающего.
// Конфигурация проверяется до создания run.
func (o *Orchestrator) TriggerOnce(ctx context.Context, cfg domain.RunConfig) (*domain.Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return o.StartRun(ctx, cfg, false)
}

// record добавляет результат в run и сохраняет его.
func (o *Orchestrator) record(ctx context.Context, run *domain.Run, res domain.StageResult, logger *slog.Logger) {
	seq := len(run.Results)
	if err := run.Record(res); err != nil {
		logger.Error("failed to record stage result", "stage", res.Stage, "error", err)
		return
	}

	if err := o.runs.AppendStageResult(ctx, run.ID, seq, res); err != nil {
		logger.Warn("failed to persist stage result", "stage", res.Stage, "error", err)
	}

	o.metrics.StageFinished(string(res.Kind), string(res.Status))

	stageLogger := telemetry.WithStage(logger, res.Stage)
	if res.OK() {
		stageLogger.Info("stage succeeded", "artifact", res.Artifact.Name)
	} else {
		stageLogger.Warn("stage failed", "error", res.Message)
	}
}

// publish отправляет run.completed. Ошибка публикации не влияет на run.
func (o *Orchestrator) publish(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishRunCompleted(ctx, run); err != nil {
		logger.Warn("failed to publish run.completed", "error", err)
	}
}

// addActiveRun добавляет run в активные.
func (o *Orchestrator) addActiveRun(run *domain.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeRuns[run.ID] = run
}

// removeActiveRun удаляет run из активных.
func (o *Orchestrator) removeActiveRun(runID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
}

// ActiveRunsCount возвращает количество выполняющихся runs.
// Ручной запуск может идти параллельно с запуском по расписанию.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}
