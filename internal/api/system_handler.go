package api

import (
	"context"
	"net/http"

	"github.com/shaiso/Observa/internal/healthcheck"
)

// SchedulerStatus возвращает состояние планировщика.
// GET /api/v1/scheduler/status
func (h *Handler) SchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if h.scheduler == nil {
		Unavailable(w, "scheduler is not running")
		return
	}
	Success(w, SchedulerStatusFromDomain(h.scheduler.Status()))
}

// TriggerScheduled запускает измерение с сохранённой конфигурацией.
// POST /api/v1/scheduler/trigger
func (h *Handler) TriggerScheduled(w http.ResponseWriter, r *http.Request) {
	run, err := h.startWithStoredConfig(context.WithoutCancel(r.Context()))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, StartMeasurementResponse{
		Success:     true,
		Message:     "measurement triggered: " + run.ID.String(),
		Measurement: MeasurementFromDomain(*run),
	})
}

// DeviceHealth возвращает результаты проверки устройств.
// ?refresh=true проверяет устройства немедленно.
// GET /api/v1/devices/health
func (h *Handler) DeviceHealth(w http.ResponseWriter, r *http.Request) {
	if h.devices == nil {
		List(w, []healthcheck.Probe{}, 0)
		return
	}

	var probes []healthcheck.Probe
	if r.URL.Query().Get("refresh") == "true" {
		probes = h.devices.CheckNow(r.Context())
	} else {
		probes = h.devices.Probes()
	}

	List(w, probes, len(probes))
}
