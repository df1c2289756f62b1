// Package cli реализует инструмент командной строки станции.
//
// # Обзор
//
// CLI работает через HTTP API станции. Единственное исключение —
// trigger --amqp-url: запрос на run публикуется в очередь runs.trigger
// напрямую (пакет mq).
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует HTTP-запросы, разбор конвертов
// {"data": ...} / {"error": ...} и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	status, err := client.SchedulerStatus()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) со статусами в цвете (fatih/color) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: observa runs latest --json | jq .
//
// ## Commands
//
//   - status
//   - trigger [--amqp-url URL]
//   - config: get, set
//   - runs: latest, history, show
//   - devices [--refresh]
//
// Каждая команда создаётся фабрикой (NewRunsCmd и т.д.), принимающей
// clientFn и outputFn — замыкания для ленивого создания Client и Output
// после парсинга PersistentFlags.
package cli
