// Package api содержит HTTP API станции.
//
// Структура:
//   - handler.go             — Handler с DI (runs, настройки, планировщик, хранилище)
//   - routes.go              — регистрация маршрутов
//   - middleware.go          — middleware (logging, recovery)
//   - response.go            — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                 — Data Transfer Objects (request/response)
//   - measurement_handler.go — /measurements
//   - settings_handler.go    — /settings/measurement-config
//   - system_handler.go      — /scheduler, /devices
package api
