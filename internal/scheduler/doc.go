// Package scheduler реализует расписание измерений станции.
//
// Scheduler владеет единственным повторяющимся таймером. На каждом
// срабатывании он вызывает Job с scheduled=true, дожидается её завершения
// и только потом начинает следующее ожидание: интервал отсчитывается от
// фактического времени срабатывания, два запуска по расписанию никогда
// не пересекаются.
//
// Структура:
//   - scheduler.go — Scheduler (SetNewSchedule, Status, Stop, цикл)
//   - timing.go    — вычисление первого срабатывания и политика пропусков
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Job:    orchestrator.NewScheduledJob(orch, configStore),
//	    Logger: logger,
//	})
//
//	// При старте и после каждого изменения настроек
//	sched.SetNewSchedule(cfg.FrequencyMinutes, cfg.FirstRun, cfg.Identity())
//
// Время берётся из clockwork.Clock, в тестах используется FakeClock.
package scheduler
