package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/scheduler"
)

// Measurement DTOs

// MeasurementResponse — ответ с run.
type MeasurementResponse struct {
	ID          uuid.UUID          `json:"id"`
	DateTime    time.Time          `json:"date_time"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Scheduled   bool               `json:"scheduled"`
	Config      domain.Toggles     `json:"config"`
	Stages      []StageResponse    `json:"stages"`
	Artifacts   []ArtifactResponse `json:"artifacts"`
	FailedCount int                `json:"failed_stages"`
}

// StageResponse — результат этапа.
type StageResponse struct {
	Stage      string             `json:"stage"`
	Status     domain.StageStatus `json:"status"`
	Message    string             `json:"message,omitempty"`
	Artifact   string             `json:"artifact,omitempty"`
	FinishedAt time.Time          `json:"finished_at"`
}

// ArtifactResponse — ссылка на артефакт.
type ArtifactResponse struct {
	Name     string `json:"name"`
	RemoteID string `json:"remote_id"`
	URL      string `json:"url"`
}

// MeasurementFromDomain конвертирует domain.Run в MeasurementResponse.
func MeasurementFromDomain(r domain.Run) MeasurementResponse {
	stages := make([]StageResponse, len(r.Results))
	for i, res := range r.Results {
		stages[i] = StageResponse{
			Stage:      res.Stage,
			Status:     res.Status,
			Message:    res.Message,
			FinishedAt: res.FinishedAt,
		}
		if res.Artifact != nil {
			stages[i].Artifact = res.Artifact.Name
		}
	}

	artifacts := make([]ArtifactResponse, len(r.Artifacts))
	for i, a := range r.Artifacts {
		artifacts[i] = ArtifactResponse{
			Name:     a.Name,
			RemoteID: a.RemoteID,
			URL:      "/api/v1/measurements/" + r.ID.String() + "/artifacts/" + a.Name,
		}
	}

	return MeasurementResponse{
		ID:          r.ID,
		DateTime:    r.CreatedAt,
		CompletedAt: r.CompletedAt,
		Scheduled:   r.Scheduled,
		Config:      r.Toggles,
		Stages:      stages,
		Artifacts:   artifacts,
		FailedCount: len(r.Failed()),
	}
}

func measurementsFromDomain(runs []domain.Run) []MeasurementResponse {
	out := make([]MeasurementResponse, len(runs))
	for i, r := range runs {
		out[i] = MeasurementFromDomain(r)
	}
	return out
}

// LatestResponse — последние измерения и ближайшее запланированное.
type LatestResponse struct {
	LastMeasurement    *time.Time            `json:"last_measurement"`
	PlannedMeasurement *time.Time            `json:"planned_measurement"`
	LatestMeasurement  []MeasurementResponse `json:"latest_measurement"`
}

// HistoryResponse — измерения за период.
type HistoryResponse struct {
	Start        time.Time             `json:"start_date"`
	End          time.Time             `json:"end_date"`
	Measurements []MeasurementResponse `json:"measurements"`
}

// StartMeasurementResponse — результат ручного запуска.
type StartMeasurementResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Measurement MeasurementResponse `json:"measurement"`
}

// Settings DTOs

// MeasurementConfigRequest — тело PUT /settings/measurement-config и
// необязательное тело POST /measurements/start.
type MeasurementConfigRequest struct {
	MeasurementFrequency int        `json:"measurement_frequency"`
	FirstMeasurement     *time.Time `json:"first_measurement,omitempty"`
	RGBCamera            bool       `json:"rgb_camera"`
	MultispectralCamera  bool       `json:"multispectral_camera"`
	NumberOfSensors      int        `json:"number_of_sensors"`
	LengthOfAE           float64    `json:"length_of_ae"`
}

// ToDomain конвертирует запрос в domain.RunConfig.
func (r MeasurementConfigRequest) ToDomain() domain.RunConfig {
	return domain.RunConfig{
		FrequencyMinutes:     r.MeasurementFrequency,
		FirstRun:             r.FirstMeasurement,
		PrimaryCamera:        r.RGBCamera,
		SecondaryCamera:      r.MultispectralCamera,
		SensorCount:          r.NumberOfSensors,
		StageDurationMinutes: r.LengthOfAE,
	}
}

// MeasurementConfigResponse — текущая конфигурация.
type MeasurementConfigResponse struct {
	ConfigID             int64      `json:"config_id"`
	MeasurementFrequency int        `json:"measurement_frequency"`
	FirstMeasurement     *time.Time `json:"first_measurement"`
	RGBCamera            bool       `json:"rgb_camera"`
	MultispectralCamera  bool       `json:"multispectral_camera"`
	NumberOfSensors      int        `json:"number_of_sensors"`
	LengthOfAE           float64    `json:"length_of_ae"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ConfigFromDomain конвертирует domain.RunConfig в MeasurementConfigResponse.
func ConfigFromDomain(c domain.RunConfig) MeasurementConfigResponse {
	return MeasurementConfigResponse{
		ConfigID:             c.ID,
		MeasurementFrequency: c.FrequencyMinutes,
		FirstMeasurement:     c.FirstRun,
		RGBCamera:            c.PrimaryCamera,
		MultispectralCamera:  c.SecondaryCamera,
		NumberOfSensors:      c.SensorCount,
		LengthOfAE:           c.StageDurationMinutes,
		CreatedAt:            c.CreatedAt,
	}
}

// Scheduler DTOs

// SchedulerStatusResponse — статус планировщика.
type SchedulerStatusResponse struct {
	Active            bool            `json:"active"`
	State             scheduler.State `json:"state"`
	NextScheduledTime *time.Time      `json:"next_scheduled_time"`
	IntervalMinutes   int             `json:"interval_minutes"`
	ConfigID          *int64          `json:"config_id"`
}

// SchedulerStatusFromDomain конвертирует scheduler.Status.
func SchedulerStatusFromDomain(s scheduler.Status) SchedulerStatusResponse {
	return SchedulerStatusResponse{
		Active:            s.Active,
		State:             s.State,
		NextScheduledTime: s.NextFire,
		IntervalMinutes:   s.FrequencyMinutes,
		ConfigID:          s.ConfigID,
	}
}
