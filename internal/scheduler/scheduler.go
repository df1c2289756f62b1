package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shaiso/Observa/internal/telemetry"
)

const defaultErrorBackoff = 60 * time.Second

// ErrSchedulerLoop — ошибка, возникшая внутри цикла расписания.
// Цикл логирует её и продолжает работу после паузы.
var ErrSchedulerLoop = errors.New("scheduler loop error")

// Job — работа, выполняемая при каждом срабатывании расписания.
// Передаётся в Scheduler при создании.
type Job interface {
	Run(ctx context.Context, scheduled bool) error
}

// JobFunc позволяет использовать функцию как Job.
type JobFunc func(ctx context.Context, scheduled bool) error

// Run вызывает f(ctx, scheduled).
func (f JobFunc) Run(ctx context.Context, scheduled bool) error {
	return f(ctx, scheduled)
}

// State — состояние планировщика.
//
//	Idle → Armed → Firing → Armed
//	  ↑______________________|  (SetNewSchedule / Stop)
type State string

const (
	StateIdle   State = "idle"
	StateArmed  State = "armed"
	StateFiring State = "firing"
)

// Status — снимок состояния планировщика.
type Status struct {
	Active           bool       `json:"active"`
	State            State      `json:"state"`
	NextFire         *time.Time `json:"next_fire"`
	FrequencyMinutes int        `json:"frequency_minutes"`
	ConfigID         *int64     `json:"config_id"`
}

// Scheduler владеет единственным повторяющимся таймером станции.
//
// Экземпляр создаётся один раз в main и передаётся явно всем,
// кому нужен его статус или перенастройка.
type Scheduler struct {
	job          Job
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	errorBackoff time.Duration
	missedPolicy MissedPolicy

	// armMu сериализует постановку и снятие цикла.
	armMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// mu защищает поля статуса. Цикл берёт только mu, поэтому
	// SetNewSchedule может ждать его завершения, удерживая armMu.
	mu        sync.RWMutex
	state     State
	nextFire  *time.Time
	frequency int
	configID  *int64
}

// Config — конфигурация Scheduler.
type Config struct {
	Job          Job                // обязательна
	Clock        clockwork.Clock    // default: clockwork.NewRealClock()
	Logger       *slog.Logger       // default: slog.Default()
	Metrics      *telemetry.Metrics // опционально
	ErrorBackoff time.Duration      // пауза после ошибки (default: 60s)
	MissedPolicy MissedPolicy       // default: MissedSkip
}

// New создаёт Scheduler в состоянии Idle.
func New(cfg Config) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := cfg.ErrorBackoff
	if backoff <= 0 {
		backoff = defaultErrorBackoff
	}

	policy := cfg.MissedPolicy
	if policy == "" {
		policy = MissedSkip
	}

	return &Scheduler{
		job:          cfg.Job,
		clock:        clock,
		logger:       logger,
		metrics:      cfg.Metrics,
		errorBackoff: backoff,
		missedPolicy: policy,
		state:        StateIdle,
	}
}

// SetNewSchedule перенастраивает расписание.
//
// 1. Если configID совпадает с текущим — ничего не делает
// 2. Останавливает текущий цикл и дожидается его завершения
// 3. frequencyMinutes <= 0 — переходит в Idle
// 4. Вычисляет время первого срабатывания и запускает новый цикл
func (s *Scheduler) SetNewSchedule(frequencyMinutes int, firstRun *time.Time, configID *int64) {
	s.armMu.Lock()
	defer s.armMu.Unlock()

	s.mu.RLock()
	same := configID != nil && s.configID != nil && *s.configID == *configID
	s.mu.RUnlock()

	if same {
		s.logger.Debug("schedule unchanged, skipping reconfiguration", "config_id", *configID)
		return
	}

	s.disarm()

	s.mu.Lock()
	s.frequency = frequencyMinutes
	s.configID = copyID(configID)
	s.mu.Unlock()

	if frequencyMinutes <= 0 {
		s.setState(StateIdle, nil)
		s.logger.Info("schedule disabled",
			"frequency_minutes", frequencyMinutes,
			"config_id", derefID(configID),
		)
		return
	}

	every := time.Duration(frequencyMinutes) * time.Minute
	at := armTime(s.missedPolicy, firstRun, every, s.clock.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.setState(StateArmed, &at)
	go s.loop(ctx, done, at, every)

	s.logger.Info("schedule armed",
		"next_fire", at,
		"frequency_minutes", frequencyMinutes,
		"config_id", derefID(configID),
		"missed_policy", s.missedPolicy,
	)
}

// Stop снимает расписание и дожидается завершения цикла.
// Идентификатор конфигурации сбрасывается, чтобы её можно было поставить снова.
func (s *Scheduler) Stop() {
	s.armMu.Lock()
	defer s.armMu.Unlock()

	s.disarm()

	s.mu.Lock()
	s.configID = nil
	s.mu.Unlock()
	s.setState(StateIdle, nil)

	s.logger.Info("scheduler stopped")
}

// Status возвращает снимок состояния.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Active:           s.state != StateIdle,
		State:            s.state,
		FrequencyMinutes: s.frequency,
		ConfigID:         copyID(s.configID),
	}
	if s.nextFire != nil {
		next := *s.nextFire
		st.NextFire = &next
	}
	return st
}

// disarm отменяет текущий цикл и ждёт его выхода. Вызывается под armMu.
func (s *Scheduler) disarm() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// loop — цикл расписания. Завершается только отменой ctx.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}, at time.Time, every time.Duration) {
	defer close(done)

	wait := at.Sub(s.clock.Now())
	for {
		if !s.sleep(ctx, wait) {
			return
		}

		now := s.clock.Now()
		next := now.Add(every)
		s.setState(StateFiring, &next)

		s.logger.Info("scheduled run starting", "fired_at", now)
		err := s.fire(ctx)
		if ctx.Err() != nil {
			if err != nil {
				s.logger.Warn("scheduled run interrupted by reconfiguration", "error", err)
			}
			return
		}
		s.metrics.SchedulerFired(err != nil)

		// Таймер стартует после завершения run.
		wait = every
		if err != nil {
			wait = s.errorBackoff
		}
		next = s.clock.Now().Add(wait)
		if err != nil {
			s.logger.Error("scheduled run failed",
				"error", err,
				"backoff", s.errorBackoff,
				"next_fire", next,
			)
		}
		s.setState(StateArmed, &next)
	}
}

// sleep ждёт d или отмены ctx. Возвращает false при отмене.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// fire вызывает job. Паника превращается в ошибку, чтобы цикл не завершился.
func (s *Scheduler) fire(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrSchedulerLoop, r)
		}
	}()

	if s.job == nil {
		return fmt.Errorf("%w: no job configured", ErrSchedulerLoop)
	}
	if jobErr := s.job.Run(ctx, true); jobErr != nil {
		return fmt.Errorf("%w: %w", ErrSchedulerLoop, jobErr)
	}
	return nil
}

func (s *Scheduler) setState(state State, next *time.Time) {
	s.mu.Lock()
	s.state = state
	if next != nil {
		n := *next
		s.nextFire = &n
	} else {
		s.nextFire = nil
	}
	s.mu.Unlock()

	s.metrics.SetNextFire(next)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
