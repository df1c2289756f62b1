package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/shaiso/Observa/internal/telemetry"
)

// cronParser — стандартный пятипольный формат.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const defaultProbeTimeout = 10 * time.Second

// Device — проверяемое устройство.
type Device interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

// session — устройство с монопольной сессией (device.Session).
// Занятое устройство не проверяется: им пользуется run.
type session interface {
	TryLock() bool
	Unlock()
}

// Probe — результат последней проверки устройства.
type Probe struct {
	Device    string    `json:"device"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker проверяет устройства по расписанию и по запросу.
type Checker struct {
	devices  map[string]Device
	schedule string
	timeout  time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	cron *cron.Cron

	mu     sync.RWMutex
	probes map[string]Probe
}

// Config — конфигурация Checker.
type Config struct {
	Devices  map[string]Device  // имя → устройство
	Schedule string             // cron-выражение; пусто — только CheckNow
	Timeout  time.Duration      // на одну проверку (default: 10s)
	Clock    clockwork.Clock    // default: clockwork.NewRealClock()
	Logger   *slog.Logger       // default: slog.Default()
	Metrics  *telemetry.Metrics // опционально
}

// ValidateSchedule проверяет cron-выражение.
func ValidateSchedule(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", schedule, err)
	}
	return nil
}

// New создаёт Checker.
func New(cfg Config) *Checker {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	devices := make(map[string]Device, len(cfg.Devices))
	for name, d := range cfg.Devices {
		if d != nil {
			devices[name] = d
		}
	}

	return &Checker{
		devices:  devices,
		schedule: cfg.Schedule,
		timeout:  timeout,
		clock:    clock,
		logger:   logger.With("component", "healthcheck"),
		metrics:  cfg.Metrics,
		probes:   make(map[string]Probe),
	}
}

// Start запускает периодическую проверку. Задания выполняются
// до Stop или отмены ctx.
func (c *Checker) Start(ctx context.Context) error {
	if c.schedule == "" {
		c.logger.Info("periodic device check disabled")
		return nil
	}

	c.cron = cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.cron.AddFunc(c.schedule, func() { c.CheckNow(ctx) }); err != nil {
		return fmt.Errorf("schedule device check: %w", err)
	}
	c.cron.Start()

	c.logger.Info("device check scheduled", "schedule", c.schedule, "devices", len(c.devices))
	return nil
}

// Stop останавливает расписание и ждёт текущую проверку.
func (c *Checker) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
}

// CheckNow проверяет все устройства параллельно и возвращает результаты,
// отсортированные по имени.
func (c *Checker) CheckNow(ctx context.Context) []Probe {
	var wg sync.WaitGroup
	results := make(chan Probe, len(c.devices))

	for name, d := range c.devices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p, ok := c.probe(ctx, name, d); ok {
				results <- p
			}
		}()
	}
	wg.Wait()
	close(results)

	c.mu.Lock()
	for p := range results {
		c.probes[p.Device] = p
	}
	c.mu.Unlock()

	return c.Probes()
}

// Probes возвращает последние результаты, отсортированные по имени.
func (c *Checker) Probes() []Probe {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Probe, 0, len(c.probes))
	for _, p := range c.probes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

// probe подключается к устройству и сразу отключается.
// ok == false — устройство занято, прежний результат остаётся в силе.
func (c *Checker) probe(ctx context.Context, name string, d Device) (p Probe, ok bool) {
	if s, locking := d.(session); locking {
		if !s.TryLock() {
			c.logger.Debug("device busy, probe skipped", "device", name)
			return Probe{}, false
		}
		defer s.Unlock()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p = Probe{Device: name}

	err := d.Connect(ctx)
	if err == nil {
		if derr := d.Disconnect(); derr != nil {
			c.logger.Warn("disconnect after probe failed", "device", name, "error", derr)
		}
	}

	p.CheckedAt = c.clock.Now().UTC()
	p.OK = err == nil
	if err != nil {
		p.Error = err.Error()
		c.logger.Warn("device probe failed", "device", name, "error", err)
	} else {
		c.logger.Debug("device probe ok", "device", name)
	}

	c.metrics.SetDeviceUp(name, p.OK)
	return p, true
}
