// Package settings управляет конфигурацией измерений станции:
// чтение, проверка, сохранение новой версии и перенастройка планировщика.
package settings
