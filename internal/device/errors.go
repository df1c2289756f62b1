package device

import "errors"

var (
	// ErrNotConnected — устройство недоступно или Connect не вызывался.
	ErrNotConnected = errors.New("device not connected")

	// ErrEmptyCapture — устройство вернуло пустой снимок или запись.
	ErrEmptyCapture = errors.New("empty capture")

	// ErrUnknownSensor — номер датчика вне диапазона 1..N.
	ErrUnknownSensor = errors.New("unknown sensor")

	// ErrUnsupportedFormat — запрошен формат, который устройство не отдаёт.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)
