package objectstore

import "errors"

var (
	// ErrNotFound — объект отсутствует в хранилище.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey — путь или имя объекта недопустимы.
	ErrInvalidKey = errors.New("invalid object key")

	// ErrNotAuthenticated — Upload/EnsurePath до успешного Authenticate.
	ErrNotAuthenticated = errors.New("object store not authenticated")
)
