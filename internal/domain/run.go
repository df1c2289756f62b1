package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск многоэтапного измерения.
//
// Run создаётся когда:
// - Срабатывает расписание (Scheduled = true)
// - Оператор запускает измерение вручную через API/CLI/очередь
//
// Run только дополняется результатами этапов и после Complete
// больше не изменяется.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// CreatedAt — время создания run. Из него формируются имена файлов.
	CreatedAt time.Time `json:"created_at"`

	// Toggles — снимок включённых этапов на момент создания.
	Toggles Toggles `json:"toggles"`

	// Scheduled — true для запусков по расписанию.
	Scheduled bool `json:"scheduled"`

	// Results — результаты этапов в порядке выполнения.
	Results []StageResult `json:"results"`

	// Artifacts — ссылки на загруженные файлы.
	Artifacts []Artifact `json:"artifacts"`

	// CompletedAt — время, когда все этапы были выполнены.
	// Nil, если run ещё выполняется (или процесс упал во время run).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRun создаёт run со снимком конфигурации.
func NewRun(cfg RunConfig, scheduled bool, now time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		CreatedAt: now.UTC(),
		Toggles:   cfg.Toggles(),
		Scheduled: scheduled,
	}
}

// Record добавляет результат этапа.
func (r *Run) Record(res StageResult) error {
	if r.IsCompleted() {
		return ErrRunSealed
	}
	r.Results = append(r.Results, res)
	if res.Artifact != nil {
		r.Artifacts = append(r.Artifacts, *res.Artifact)
	}
	return nil
}

// Complete закрывает run.
func (r *Run) Complete(at time.Time) error {
	if r.IsCompleted() {
		return ErrRunSealed
	}
	at = at.UTC()
	r.CompletedAt = &at
	return nil
}

// IsCompleted возвращает true, если все этапы выполнены.
func (r *Run) IsCompleted() bool {
	return r.CompletedAt != nil
}

// StageStatus возвращает итоговый статус этапа данного типа.
// Для акустического этапа ошибка хотя бы одного датчика даёт error.
// ok == false, если этап не выполнялся.
func (r *Run) StageStatus(kind StageKind) (status StageStatus, ok bool) {
	for _, res := range r.Results {
		if res.Kind != kind {
			continue
		}
		ok = true
		if !res.OK() {
			return StageStatusError, true
		}
	}
	if !ok {
		return "", false
	}
	return StageStatusSuccess, true
}

// Failed возвращает результаты этапов с ошибкой.
func (r *Run) Failed() []StageResult {
	var failed []StageResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// ArtifactCount возвращает количество загруженных файлов.
func (r *Run) ArtifactCount() int {
	return len(r.Artifacts)
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.CreatedAt)
}
