package domain

import (
	"errors"
	"fmt"
)

// Ошибки доменной модели.
var (
	// ErrConfiguration — недопустимая комбинация параметров конфигурации.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrRunSealed — попытка изменить завершённый run.
	ErrRunSealed = errors.New("run is already completed")
)

// ConfigurationError описывает, какое поле конфигурации отклонено.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
