// Package orchestrator выполняет runs измерений.
//
// Run состоит из этапов, выполняемых строго по порядку:
//
//	primary-camera → secondary-camera → acoustic-sensor-1 … acoustic-sensor-N
//
// Каждый этап: получить данные с устройства → загрузить в хранилище
// (measurements/<run-id>/) → сохранить ссылку на артефакт. Ошибка любого
// шага становится StageResult со статусом error, run продолжается.
// Фатальна только ошибка создания run (ErrPersistence).
//
// Структура:
//   - orchestrator.go — Orchestrator, интерфейсы зависимостей, StartRun/TriggerOnce
//   - stages.go       — план этапов, захват, чтение датчиков, загрузка
//   - job.go          — ScheduledJob для планировщика
//   - handlers.go     — обработчик очереди runs.trigger
//   - errors.go       — ошибки оркестратора
package orchestrator
