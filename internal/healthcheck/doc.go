// Package healthcheck периодически проверяет доступность камер станции.
//
// Проверка — Connect и Disconnect без захвата кадра. Расписание задаётся
// cron-выражением (DEVICE_CHECK_CRON), результат хранится в памяти
// и выставляется в метрику observa_device_up.
package healthcheck
