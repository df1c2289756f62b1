// Package repo — PostgreSQL-хранилище станции (pgx).
//
//   - runs, run_stage_results, run_artifacts — RunRepo
//   - measurement_configs                     — ConfigRepo
//
// Для работы без сервера БД см. пакет localdb (SQLite).
package repo
