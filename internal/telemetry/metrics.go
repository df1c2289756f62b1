package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики станции.
//
// Все методы безопасны для nil-получателя: компоненты, созданные
// без метрик (например, в тестах), просто ничего не записывают.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	stageResults    *prometheus.CounterVec
	schedulerFires  prometheus.Counter
	schedulerErrors prometheus.Counter
	nextFire        prometheus.Gauge
	deviceUp        *prometheus.GaugeVec
	eventsPublished *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// Для production передаётся prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "observa_runs_total",
			Help: "Total measurement runs by trigger (scheduled, manual)",
		}, []string{"trigger"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "observa_run_duration_seconds",
			Help:    "Duration of measurement runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		stageResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "observa_stage_results_total",
			Help: "Stage outcomes by stage kind and status",
		}, []string{"kind", "status"}),
		schedulerFires: factory.NewCounter(prometheus.CounterOpts{
			Name: "observa_scheduler_fires_total",
			Help: "Total scheduler fires",
		}),
		schedulerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "observa_scheduler_loop_errors_total",
			Help: "Scheduled fires that ended with an error",
		}),
		nextFire: factory.NewGauge(prometheus.GaugeOpts{
			Name: "observa_scheduler_next_fire_timestamp_seconds",
			Help: "Unix time of the next scheduled fire, 0 when idle",
		}),
		deviceUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "observa_device_up",
			Help: "1 if the last device probe succeeded",
		}, []string{"device"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "observa_events_published_total",
			Help: "Events published to the message bus by type and result",
		}, []string{"type", "result"}),
	}
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(scheduled bool, d time.Duration) {
	if m == nil {
		return
	}
	trigger := "manual"
	if scheduled {
		trigger = "scheduled"
	}
	m.runsTotal.WithLabelValues(trigger).Inc()
	m.runDuration.Observe(d.Seconds())
}

// StageFinished учитывает результат этапа.
func (m *Metrics) StageFinished(kind, status string) {
	if m == nil {
		return
	}
	m.stageResults.WithLabelValues(kind, status).Inc()
}

// SchedulerFired учитывает срабатывание расписания.
func (m *Metrics) SchedulerFired(failed bool) {
	if m == nil {
		return
	}
	m.schedulerFires.Inc()
	if failed {
		m.schedulerErrors.Inc()
	}
}

// SetNextFire выставляет время следующего срабатывания. nil — расписание выключено.
func (m *Metrics) SetNextFire(at *time.Time) {
	if m == nil {
		return
	}
	if at == nil {
		m.nextFire.Set(0)
		return
	}
	m.nextFire.Set(float64(at.Unix()))
}

// SetDeviceUp записывает результат проверки устройства.
func (m *Metrics) SetDeviceUp(device string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.deviceUp.WithLabelValues(device).Set(v)
}

// EventPublished учитывает публикацию события.
func (m *Metrics) EventPublished(msgType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(msgType, result).Inc()
}
