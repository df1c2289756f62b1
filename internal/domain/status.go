package domain

import (
	"fmt"
	"time"
)

// StageStatus — результат выполнения этапа.
type StageStatus string

const (
	// StageStatusSuccess — артефакт получен и загружен.
	StageStatusSuccess StageStatus = "success"

	// StageStatusError — этап завершился ошибкой, run продолжается.
	StageStatusError StageStatus = "error"
)

// StageKind — тип этапа измерения.
//
// Порядок выполнения фиксирован:
//
//	primary-camera → secondary-camera → acoustic-sensor-1..N
type StageKind string

const (
	StageKindPrimaryCamera   StageKind = "primary-camera"
	StageKindSecondaryCamera StageKind = "secondary-camera"
	StageKindAcoustic        StageKind = "acoustic-sensor"
)

// Artifact — ссылка на загруженный файл.
type Artifact struct {
	// Name — имя файла, например RGB_20240101120000.png.
	Name string `json:"name"`

	// RemoteID — идентификатор объекта в хранилище.
	RemoteID string `json:"remote_id"`
}

// StageResult — помеченный результат одного этапа.
// Этапы не возвращают ошибки наружу, только StageResult.
type StageResult struct {
	// Stage — метка этапа: primary-camera, secondary-camera, acoustic-sensor-2.
	Stage string `json:"stage"`

	Kind StageKind `json:"kind"`

	// Sensor — номер датчика (1..N) для акустических этапов, 0 для камер.
	Sensor int `json:"sensor,omitempty"`

	Status  StageStatus `json:"status"`
	Message string      `json:"message"`

	// Artifact — заполнен только при успехе.
	Artifact *Artifact `json:"artifact,omitempty"`

	FinishedAt time.Time `json:"finished_at"`
}

// StageLabel формирует метку этапа.
func StageLabel(kind StageKind, sensor int) string {
	if kind == StageKindAcoustic {
		return fmt.Sprintf("%s-%d", kind, sensor)
	}
	return string(kind)
}

// Succeeded возвращает результат успешного этапа.
func Succeeded(kind StageKind, sensor int, artifact Artifact, at time.Time) StageResult {
	return StageResult{
		Stage:      StageLabel(kind, sensor),
		Kind:       kind,
		Sensor:     sensor,
		Status:     StageStatusSuccess,
		Message:    "uploaded " + artifact.Name,
		Artifact:   &artifact,
		FinishedAt: at,
	}
}

// Failed возвращает результат этапа с ошибкой.
func Failed(kind StageKind, sensor int, err error, at time.Time) StageResult {
	return StageResult{
		Stage:      StageLabel(kind, sensor),
		Kind:       kind,
		Sensor:     sensor,
		Status:     StageStatusError,
		Message:    err.Error(),
		FinishedAt: at,
	}
}

// OK возвращает true для успешного этапа.
func (r StageResult) OK() bool {
	return r.Status == StageStatusSuccess
}
