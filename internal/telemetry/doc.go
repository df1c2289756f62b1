// Package telemetry обеспечивает наблюдаемость станции.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (runs, этапы, планировщик, устройства)
//
// Все бинарники используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
