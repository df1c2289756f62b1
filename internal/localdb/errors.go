package localdb

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	"github.com/shaiso/Observa/internal/repo"
)

// mapSqliteError приводит ошибки SQLite к ошибкам пакета repo,
// чтобы вызывающий код не зависел от выбранного драйвера.
func mapSqliteError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return repo.ErrAlreadyExists
		case sqlite3.ErrConstraintForeignKey:
			return repo.ErrNotFound
		}
	}
	return err
}
