package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Observa/internal/domain"
)

// ConfigRepo хранит версии конфигурации измерений.
// Каждое обновление — новая строка, актуальна строка с наибольшим id.
type ConfigRepo struct {
	pool *pgxpool.Pool
}

// NewConfigRepo создаёт новый ConfigRepo.
func NewConfigRepo(pool *pgxpool.Pool) *ConfigRepo {
	return &ConfigRepo{pool: pool}
}

// GetConfig возвращает актуальную конфигурацию.
// При пустой таблице сохраняет и возвращает конфигурацию по умолчанию.
func (r *ConfigRepo) GetConfig(ctx context.Context) (*domain.RunConfig, error) {
	query := `
		SELECT id, frequency_minutes, first_run, primary_camera, secondary_camera,
		       sensor_count, stage_duration_minutes, created_at
		FROM measurement_configs
		ORDER BY id DESC
		LIMIT 1
	`
	var cfg domain.RunConfig
	err := r.pool.QueryRow(ctx, query).Scan(
		&cfg.ID,
		&cfg.FrequencyMinutes,
		&cfg.FirstRun,
		&cfg.PrimaryCamera,
		&cfg.SecondaryCamera,
		&cfg.SensorCount,
		&cfg.StageDurationMinutes,
		&cfg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.PutConfig(ctx, domain.DefaultRunConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	normalizeConfig(&cfg)
	return &cfg, nil
}

// PutConfig сохраняет новую версию. ID и CreatedAt входного значения игнорируются.
func (r *ConfigRepo) PutConfig(ctx context.Context, cfg domain.RunConfig) (*domain.RunConfig, error) {
	query := `
		INSERT INTO measurement_configs (frequency_minutes, first_run, primary_camera, secondary_camera,
		                                 sensor_count, stage_duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		cfg.FrequencyMinutes,
		cfg.FirstRun,
		cfg.PrimaryCamera,
		cfg.SecondaryCamera,
		cfg.SensorCount,
		cfg.StageDurationMinutes,
	).Scan(&cfg.ID, &cfg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert config: %w", mapPgError(err))
	}

	normalizeConfig(&cfg)
	return &cfg, nil
}

// normalizeConfig приводит время к UTC.
func normalizeConfig(cfg *domain.RunConfig) {
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	if cfg.FirstRun != nil {
		first := cfg.FirstRun.UTC()
		cfg.FirstRun = &first
	}
}
