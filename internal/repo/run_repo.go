package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Observa/internal/domain"
)

// RunRepo — репозиторий runs в PostgreSQL.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, created_at, scheduled, primary_camera, secondary_camera,
		       sensor_count, stage_duration_minutes, completed_at`

// Create сохраняет новый run со снимком переключателей.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, created_at, scheduled, primary_camera, secondary_camera,
		                  sensor_count, stage_duration_minutes, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.CreatedAt,
		run.Scheduled,
		run.Toggles.PrimaryCamera,
		run.Toggles.SecondaryCamera,
		run.Toggles.SensorCount,
		run.Toggles.StageDurationMinutes,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", mapPgError(err))
	}
	return nil
}

// Get возвращает run с результатами этапов и артефактами.
func (r *RunRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListLatest возвращает n последних runs, новые первыми.
func (r *RunRepo) ListLatest(ctx context.Context, n int) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT $1`
	return r.list(ctx, query, n)
}

// ListBetween возвращает runs, созданные в [start, end], по возрастанию времени.
func (r *RunRepo) ListBetween(ctx context.Context, start, end time.Time) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, start.UTC(), end.UTC())
}

// AppendArtifact добавляет ссылку на загруженный файл.
func (r *RunRepo) AppendArtifact(ctx context.Context, runID uuid.UUID, name, remoteID string) error {
	query := `INSERT INTO run_artifacts (run_id, name, remote_id) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, runID, name, remoteID); err != nil {
		return fmt.Errorf("insert artifact: %w", mapPgError(err))
	}
	return nil
}

// AppendStageResult сохраняет результат этапа под порядковым номером seq.
func (r *RunRepo) AppendStageResult(ctx context.Context, runID uuid.UUID, seq int, res domain.StageResult) error {
	var artifact *string
	if res.Artifact != nil {
		artifact = &res.Artifact.Name
	}

	query := `
		INSERT INTO run_stage_results (run_id, seq, stage, kind, sensor, status, message, artifact, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		runID,
		seq,
		res.Stage,
		res.Kind,
		res.Sensor,
		res.Status,
		res.Message,
		artifact,
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", mapPgError(err))
	}
	return nil
}

// MarkCompleted закрывает run. Повторное закрытие не меняет время.
func (r *RunRepo) MarkCompleted(ctx context.Context, runID uuid.UUID, at time.Time) error {
	query := `UPDATE runs SET completed_at = $2 WHERE id = $1 AND completed_at IS NULL`
	result, err := r.pool.Exec(ctx, query, runID, at.UTC())
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// --- Helpers ---

func (r *RunRepo) list(ctx context.Context, query string, args ...any) ([]domain.Run, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, *run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	for i := range runs {
		if err := r.loadDetails(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// loadDetails дочитывает результаты этапов и артефакты run.
func (r *RunRepo) loadDetails(ctx context.Context, run *domain.Run) error {
	artifacts, err := r.artifacts(ctx, run.ID)
	if err != nil {
		return err
	}
	run.Artifacts = artifacts

	byName := make(map[string]domain.Artifact, len(artifacts))
	for _, a := range artifacts {
		byName[a.Name] = a
	}

	rows, err := r.pool.Query(ctx, `
		SELECT stage, kind, sensor, status, message, artifact, finished_at
		FROM run_stage_results
		WHERE run_id = $1
		ORDER BY seq ASC
	`, run.ID)
	if err != nil {
		return fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res domain.StageResult
		var artifact *string
		if err := rows.Scan(&res.Stage, &res.Kind, &res.Sensor, &res.Status, &res.Message, &artifact, &res.FinishedAt); err != nil {
			return fmt.Errorf("scan stage result: %w", err)
		}
		if artifact != nil {
			a, ok := byName[*artifact]
			if !ok {
				a = domain.Artifact{Name: *artifact}
			}
			res.Artifact = &a
		}
		res.FinishedAt = res.FinishedAt.UTC()
		run.Results = append(run.Results, res)
	}
	return rows.Err()
}

func (r *RunRepo) artifacts(ctx context.Context, runID uuid.UUID) ([]domain.Artifact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, remote_id FROM run_artifacts WHERE run_id = $1 ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.Name, &a.RemoteID); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// scanRun сканирует одну строку в Run. pgx.Rows тоже реализует pgx.Row.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID,
		&run.CreatedAt,
		&run.Scheduled,
		&run.Toggles.PrimaryCamera,
		&run.Toggles.SecondaryCamera,
		&run.Toggles.SensorCount,
		&run.Toggles.StageDurationMinutes,
		&run.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.CreatedAt = run.CreatedAt.UTC()
	if run.CompletedAt != nil {
		at := run.CompletedAt.UTC()
		run.CompletedAt = &at
	}
	return &run, nil
}
