// Package localdb — хранилище станции в SQLite (DB_DRIVER=sqlite).
//
// Реализует те же операции, что repo.RunRepo и repo.ConfigRepo, для
// станций без сервера PostgreSQL. Ошибки совпадают с ошибками repo.
package localdb
