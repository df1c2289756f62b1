// Package device содержит переносимые драйверы устройств станции.
//
//   - SnapshotCamera — IP-камера, отдающая снимок по HTTP
//   - FileCamera     — снимок из файла (DEVICE_MODE=file, стенд без камер)
//   - FileSensors    — записи акустических датчиков из файлов
//
// Все типы реализуют интерфейсы orchestrator.CaptureDevice и
// orchestrator.SensorArray. Камеры встраивают Session: orchestrator и
// healthcheck берут её на время Connect → Disconnect.
package device
