package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/repo"
)

// RunRepo — репозиторий runs в SQLite.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, created_at, scheduled, primary_camera, secondary_camera, sensor_count, stage_duration_minutes, completed_at`

// Create сохраняет новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		formatTime(run.CreatedAt),
		run.Scheduled,
		run.Toggles.PrimaryCamera,
		run.Toggles.SecondaryCamera,
		run.Toggles.SensorCount,
		run.Toggles.StageDurationMinutes,
		formatNullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", mapSqliteError(err))
	}
	return nil
}

// Get возвращает run с результатами и артефактами.
func (r *RunRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
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
	return r.list(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, n)
}

// ListBetween возвращает runs, созданные в [start, end].
func (r *RunRepo) ListBetween(ctx context.Context, start, end time.Time) ([]domain.Run, error) {
	return r.list(ctx,
		`SELECT `+runColumns+` FROM runs WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`,
		formatTime(start), formatTime(end))
}

// AppendArtifact добавляет ссылку на загруженный файл.
func (r *RunRepo) AppendArtifact(ctx context.Context, runID uuid.UUID, name, remoteID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_artifacts (run_id, name, remote_id) VALUES (?, ?, ?)`,
		runID.String(), name, remoteID)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", mapSqliteError(err))
	}
	return nil
}

// AppendStageResult сохраняет результат этапа.
func (r *RunRepo) AppendStageResult(ctx context.Context, runID uuid.UUID, seq int, res domain.StageResult) error {
	var artifact sql.NullString
	if res.Artifact != nil {
		artifact = sql.NullString{String: res.Artifact.Name, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_stage_results (run_id, seq, stage, kind, sensor, status, message, artifact, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID.String(),
		seq,
		res.Stage,
		string(res.Kind),
		res.Sensor,
		string(res.Status),
		res.Message,
		artifact,
		formatTime(res.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", mapSqliteError(err))
	}
	return nil
}

// MarkCompleted закрывает run один раз.
func (r *RunRepo) MarkCompleted(ctx context.Context, runID uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = ? WHERE id = ? AND completed_at IS NULL`,
		formatTime(at), runID.String())
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete run %s: %w", runID, repo.ErrNotFound)
	}
	return nil
}

func (r *RunRepo) list(ctx context.Context, query string, args ...any) ([]domain.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

	// Детали читаются после закрытия rows: соединение одно.
	for i := range runs {
		if err := r.loadDetails(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

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

	rows, err := r.db.QueryContext(ctx,
		`SELECT stage, kind, sensor, status, message, artifact, finished_at
		 FROM run_stage_results WHERE run_id = ? ORDER BY seq ASC`, run.ID.String())
	if err != nil {
		return fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res          domain.StageResult
			kind, status string
			artifact     sql.NullString
			finishedAt   string
		)
		if err := rows.Scan(&res.Stage, &kind, &res.Sensor, &status, &res.Message, &artifact, &finishedAt); err != nil {
			return fmt.Errorf("scan stage result: %w", err)
		}
		res.Kind = domain.StageKind(kind)
		res.Status = domain.StageStatus(status)
		if res.FinishedAt, err = parseTime(finishedAt); err != nil {
			return err
		}
		if artifact.Valid {
			a, ok := byName[artifact.String]
			if !ok {
				a = domain.Artifact{Name: artifact.String}
			}
			res.Artifact = &a
		}
		run.Results = append(run.Results, res)
	}
	return rows.Err()
}

func (r *RunRepo) artifacts(ctx context.Context, runID uuid.UUID) ([]domain.Artifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, remote_id FROM run_artifacts WHERE run_id = ? ORDER BY id ASC`, runID.String())
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

// rowScanner — общее для *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run         domain.Run
		id          string
		createdAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&id,
		&createdAt,
		&run.Scheduled,
		&run.Toggles.PrimaryCamera,
		&run.Toggles.SecondaryCamera,
		&run.Toggles.SensorCount,
		&run.Toggles.StageDurationMinutes,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return &run, nil
}
