package mq

import "errors"

var (
	// ErrNotConnected — соединение с брокером сейчас недоступно.
	ErrNotConnected = errors.New("mq: not connected")

	// ErrClosed — соединение закрыто вызовом Close.
	ErrClosed = errors.New("mq: connection closed")
)
