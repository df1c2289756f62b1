// Package mq связывает станцию с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим переподключением
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — конверт Message, payloads, публикация событий
//   - consumer.go   — потребление очереди runs.trigger
//
// Типы сообщений:
//   - run.trigger     — запрос на ручной run (входящий)
//   - run.completed   — run завершён (исходящий)
//   - config.updated  — сохранена новая конфигурация (исходящий)
//
// Брокер опционален: при пустом RABBITMQ_URL станция работает без событий.
package mq
