package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Measurements
	mux.Handle("GET /api/v1/measurements/latest", chain(http.HandlerFunc(h.LatestMeasurements)))
	mux.Handle("GET /api/v1/measurements/history", chain(http.HandlerFunc(h.MeasurementHistory)))
	mux.Handle("POST /api/v1/measurements/start", chain(http.HandlerFunc(h.StartMeasurement)))
	mux.Handle("GET /api/v1/measurements/{id}", chain(http.HandlerFunc(h.GetMeasurement)))
	mux.Handle("GET /api/v1/measurements/{id}/artifacts/{name}", chain(http.HandlerFunc(h.DownloadArtifact)))

	// Settings
	mux.Handle("GET /api/v1/settings/measurement-config", chain(http.HandlerFunc(h.GetMeasurementConfig)))
	mux.Handle("PUT /api/v1/settings/measurement-config", chain(http.HandlerFunc(h.UpdateMeasurementConfig)))

	// Scheduler
	mux.Handle("GET /api/v1/scheduler/status", chain(http.HandlerFunc(h.SchedulerStatus)))
	mux.Handle("POST /api/v1/scheduler/trigger", chain(http.HandlerFunc(h.TriggerScheduled)))

	// Devices
	mux.Handle("GET /api/v1/devices/health", chain(http.HandlerFunc(h.DeviceHealth)))
}
