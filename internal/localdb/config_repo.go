package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/shaiso/Observa/internal/domain"
)

// ConfigRepo хранит версии конфигурации измерений в SQLite.
type ConfigRepo struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewConfigRepo создаёт ConfigRepo. clock задаёт CreatedAt новых версий.
func NewConfigRepo(db *sql.DB, clock clockwork.Clock) *ConfigRepo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConfigRepo{db: db, clock: clock}
}

// GetConfig возвращает последнюю версию, при пустой таблице — сохранённую по умолчанию.
func (r *ConfigRepo) GetConfig(ctx context.Context) (*domain.RunConfig, error) {
	var (
		cfg       domain.RunConfig
		firstRun  sql.NullString
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, frequency_minutes, first_run, primary_camera, secondary_camera,
		       sensor_count, stage_duration_minutes, created_at
		FROM measurement_configs ORDER BY id DESC LIMIT 1`).Scan(
		&cfg.ID,
		&cfg.FrequencyMinutes,
		&firstRun,
		&cfg.PrimaryCamera,
		&cfg.SecondaryCamera,
		&cfg.SensorCount,
		&cfg.StageDurationMinutes,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r.PutConfig(ctx, domain.DefaultRunConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	if cfg.FirstRun, err = parseNullTime(firstRun); err != nil {
		return nil, err
	}
	if cfg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PutConfig сохраняет новую версию и возвращает её с новым ID.
func (r *ConfigRepo) PutConfig(ctx context.Context, cfg domain.RunConfig) (*domain.RunConfig, error) {
	created := r.clock.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO measurement_configs (frequency_minutes, first_run, primary_camera, secondary_camera,
		                                 sensor_count, stage_duration_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cfg.FrequencyMinutes,
		formatNullTime(cfg.FirstRun),
		cfg.PrimaryCamera,
		cfg.SecondaryCamera,
		cfg.SensorCount,
		cfg.StageDurationMinutes,
		formatTime(created),
	)
	if err != nil {
		return nil, fmt.Errorf("insert config: %w", mapSqliteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("config id: %w", err)
	}

	cfg.ID = id
	cfg.CreatedAt = created
	if cfg.FirstRun != nil {
		first := cfg.FirstRun.UTC()
		cfg.FirstRun = &first
	}
	return &cfg, nil
}
