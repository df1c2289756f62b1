package api

import (
	"encoding/json"
	"net/http"
)

// GetMeasurementConfig возвращает текущую конфигурацию.
// GET /api/v1/settings/measurement-config
func (h *Handler) GetMeasurementConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, ConfigFromDomain(*cfg))
}

// UpdateMeasurementConfig сохраняет новую конфигурацию и перенастраивает
// планировщик. Недопустимая конфигурация — 400.
// PUT /api/v1/settings/measurement-config
func (h *Handler) UpdateMeasurementConfig(w http.ResponseWriter, r *http.Request) {
	var req MeasurementConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	cfg, err := h.settings.Update(r.Context(), req.ToDomain())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, ConfigFromDomain(*cfg))
}
