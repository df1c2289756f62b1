// Observa Station — сервис управления измерительной станцией.
//
// Станция:
//   - Запускает измерения по расписанию (одно повторяющееся расписание)
//   - Выполняет этапы: RGB камера, мультиспектральная камера, акустические датчики
//   - Загружает артефакты в S3-совместимое хранилище
//   - Сохраняет runs в Postgres или SQLite
//   - Публикует события и принимает запросы на run через RabbitMQ (опционально)
//   - Предоставляет HTTP API, /healthz и /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Observa/internal/api"
	"github.com/shaiso/Observa/internal/config"
	"github.com/shaiso/Observa/internal/healthcheck"
	"github.com/shaiso/Observa/internal/mq"
	"github.com/shaiso/Observa/internal/objectstore"
	"github.com/shaiso/Observa/internal/orchestrator"
	"github.com/shaiso/Observa/internal/scheduler"
	"github.com/shaiso/Observa/internal/settings"
	"github.com/shaiso/Observa/internal/telemetry"
)

var startTime = time.Now()

// newStorage открывает хранилище runs; подменяется в тестах.
var newStorage = openStorage

func main() {
	os.Exit(run())
}

// run собирает станцию и блокируется до сигнала завершения.
// Возвращает код выхода; отложенные Stop/Close выполняются и при ошибке запуска.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 1
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLoggerWith(cfg.LogFormat, telemetry.ParseLevel(cfg.LogLevel))
	logger.Info("starting observa-station",
		"db_driver", cfg.DB.Driver,
		"device_mode", cfg.Devices.Mode,
		"missed_policy", cfg.Schedule.MissedPolicy,
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Хранилище runs и конфигураций
	store, err := newStorage(ctx, cfg.DB, clock, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return 1
	}
	defer store.close()

	// Хранилище артефактов
	artifacts, err := objectstore.New(cfg.Storage)
	if err != nil {
		logger.Error("failed to create object store client", "error", err)
		return 1
	}

	// Устройства
	devices, err := newDevices(cfg.Devices, clock)
	if err != nil {
		logger.Error("failed to set up devices", "error", err)
		return 1
	}

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	if cfg.MQ.Enabled() {
		mqConn, err = mq.NewConnection(cfg.MQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running without events", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher = mq.NewPublisher(mqConn, logger, metrics)
		}
	}

	// Оркестратор
	orchCfg := orchestrator.Config{
		Runs:      store.runs,
		Store:     artifacts,
		Primary:   devices.primary,
		Secondary: devices.secondary,
		Sensors:   devices.sensors,
		Clock:     clock,
		Logger:    logger,
		Metrics:   metrics,
	}
	if publisher != nil {
		orchCfg.Events = publisher
	}
	orch := orchestrator.New(orchCfg)

	// Планировщик
	sched := scheduler.New(scheduler.Config{
		Job:          orchestrator.NewScheduledJob(orch, store.configs),
		Clock:        clock,
		Logger:       logger,
		Metrics:      metrics,
		ErrorBackoff: cfg.Schedule.ErrorBackoff,
		MissedPolicy: cfg.Schedule.MissedPolicy,
	})
	defer sched.Stop()

	// Настройки: перенос старого файла и запуск расписания
	settingsCfg := settings.Config{
		Store:     store.configs,
		Scheduler: sched,
		SeedFile:  cfg.SeedFile,
		Logger:    logger,
	}
	if publisher != nil {
		settingsCfg.Events = publisher
	}
	settingsSvc := settings.New(settingsCfg)

	if _, err := settingsSvc.Initialize(ctx); err != nil {
		logger.Error("failed to initialize measurement config", "error", err)
		return 1
	}

	// Проверка устройств
	checker := healthcheck.New(healthcheck.Config{
		Devices:  devices.probes,
		Schedule: cfg.Devices.CheckCron,
		Timeout:  cfg.Devices.CaptureTimeout,
		Clock:    clock,
		Logger:   logger,
		Metrics:  metrics,
	})
	checker.CheckNow(ctx)
	if err := checker.Start(ctx); err != nil {
		logger.Error("failed to schedule device checks", "error", err)
		return 1
	}
	defer checker.Stop()

	// Consumer runs.trigger
	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueRunsTrigger,
			Handler: orchestrator.NewTriggerHandler(orch, store.configs),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("run.trigger consumer stopped", "error", err)
			}
		}()
		defer consumer.Stop()
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Runs:      store.runs,
		Starter:   orch,
		Settings:  settingsSvc,
		Scheduler: sched,
		Artifacts: artifacts,
		Devices:   checker,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("observa-station stopped", "active_runs", orch.ActiveRunsCount())

	select {
	case <-serveErr:
		return 1
	default:
		return 0
	}
}
