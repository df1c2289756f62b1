package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrPersistence — не удалось создать run. Ошибка фатальна для запуска.
	ErrPersistence = errors.New("persistence error")

	// ErrDevice — устройство не подключилось или не вернуло данные.
	ErrDevice = errors.New("device error")

	// ErrUpload — не удалось загрузить артефакт или сохранить ссылку на него.
	ErrUpload = errors.New("upload error")

	// ErrRunCancelled — run прерван отменой контекста.
	ErrRunCancelled = errors.New("run cancelled")
)
