package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/telemetry"
)

// latestLimit — сколько runs отдаёт /measurements/latest.
const latestLimit = 5

// LatestMeasurements возвращает последние измерения и время следующего.
// GET /api/v1/measurements/latest
func (h *Handler) LatestMeasurements(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListLatest(r.Context(), latestLimit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	resp := LatestResponse{LatestMeasurement: measurementsFromDomain(runs)}
	if len(runs) > 0 {
		last := runs[0].CreatedAt
		resp.LastMeasurement = &last
	}
	if h.scheduler != nil {
		resp.PlannedMeasurement = h.scheduler.Status().NextFire
	}

	Success(w, resp)
}

// MeasurementHistory возвращает измерения за период.
// GET /api/v1/measurements/history?start_date=...&end_date=...
func (h *Handler) MeasurementHistory(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r.URL.Query().Get("start_date"))
	if err != nil {
		BadRequest(w, "invalid start_date: "+err.Error())
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end_date"))
	if err != nil {
		BadRequest(w, "invalid end_date: "+err.Error())
		return
	}
	if end.Before(start) {
		BadRequest(w, "end_date must not be before start_date")
		return
	}

	runs, err := h.runs.ListBetween(r.Context(), start, end)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, HistoryResponse{
		Start:        start,
		End:          end,
		Measurements: measurementsFromDomain(runs),
	})
}

// GetMeasurement возвращает run с результатами этапов.
// GET /api/v1/measurements/{id}
func (h *Handler) GetMeasurement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid measurement id")
		return
	}

	run, err := h.runs.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "measurement not found") {
		return
	}

	Success(w, MeasurementFromDomain(*run))
}

// StartMeasurement запускает измерение вручную.
// Необязательное тело задаёт конфигурацию только для этого запуска.
// POST /api/v1/measurements/start
func (h *Handler) StartMeasurement(w http.ResponseWriter, r *http.Request) {
	var override *MeasurementConfigRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(body) > 0 {
		var req MeasurementConfigRequest
		if err := json.Unmarshal(body, &req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
		override = &req
	}

	// Run не прерывается, если клиент закрыл соединение.
	ctx := context.WithoutCancel(r.Context())

	var run *domain.Run
	if override != nil {
		run, err = h.starter.TriggerOnce(ctx, override.ToDomain())
	} else {
		run, err = h.startWithStoredConfig(ctx)
	}
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, StartMeasurementResponse{
		Success:     true,
		Message:     "measurement completed",
		Measurement: MeasurementFromDomain(*run),
	})
}

// DownloadArtifact отдаёт файл артефакта из хранилища.
// GET /api/v1/measurements/{id}/artifacts/{name}
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		Unavailable(w, "artifact storage is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid measurement id")
		return
	}
	name := r.PathValue("name")

	run, err := h.runs.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "measurement not found") {
		return
	}

	var remoteID string
	for _, a := range run.Artifacts {
		if a.Name == name {
			remoteID = a.RemoteID
			break
		}
	}
	if remoteID == "" {
		NotFound(w, "artifact not found")
		return
	}

	meta, err := h.artifacts.Metadata(r.Context(), remoteID)
	if HandleRepoError(w, h.logger, err, "artifact not found in storage") {
		return
	}
	data, err := h.artifacts.Download(r.Context(), remoteID)
	if HandleRepoError(w, h.logger, err, "artifact not found in storage") {
		return
	}

	mime := meta.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		telemetry.FromContext(r.Context()).Warn("failed to write artifact", "name", name, "error", err)
	}
}

func (h *Handler) startWithStoredConfig(ctx context.Context) (*domain.Run, error) {
	cfg, err := h.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return h.starter.StartRun(ctx, *cfg, false)
}

// timeParamLayouts — допустимые форматы дат в query.
var timeParamLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("required")
	}
	for _, layout := range timeParamLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("expected RFC3339 or YYYY-MM-DD")
}
