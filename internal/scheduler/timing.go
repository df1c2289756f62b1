package scheduler

import (
	"fmt"
	"time"
)

// MissedPolicy определяет, что делать с интервалами, пропущенными
// до момента включения расписания (first_run в прошлом).
type MissedPolicy string

const (
	// MissedSkip — пропущенные интервалы не догоняются: первое срабатывание
	// выравнивается вверх до ближайшего будущего first_run + k*frequency.
	MissedSkip MissedPolicy = "skip"

	// MissedCatchUpOnce — при устаревшем first_run выполняется ровно одно
	// догоняющее измерение сразу, дальше расписание идёт от фактического времени.
	MissedCatchUpOnce MissedPolicy = "catch-up-once"
)

// ParseMissedPolicy разбирает политику из строки конфигурации.
// Пустая строка — MissedSkip.
func ParseMissedPolicy(s string) (MissedPolicy, error) {
	switch MissedPolicy(s) {
	case "", MissedSkip:
		return MissedSkip, nil
	case MissedCatchUpOnce:
		return MissedCatchUpOnce, nil
	default:
		return "", fmt.Errorf("unknown missed-interval policy %q", s)
	}
}

// NextFireTime вычисляет время первого срабатывания.
//
//   - firstRun == nil — now + every
//   - firstRun в будущем — firstRun
//   - firstRun в прошлом (или равен now) — firstRun + k*every для наименьшего
//     k >= 0, при котором результат строго позже now
func NextFireTime(firstRun *time.Time, every time.Duration, now time.Time) time.Time {
	if firstRun == nil {
		return now.Add(every)
	}

	at := *firstRun
	if at.After(now) || every <= 0 {
		return at
	}

	k := now.Sub(at)/every + 1
	return at.Add(k * every)
}

// armTime вычисляет момент первого срабатывания с учётом политики.
func armTime(policy MissedPolicy, firstRun *time.Time, every time.Duration, now time.Time) time.Time {
	if policy == MissedCatchUpOnce && firstRun != nil && firstRun.Before(now) {
		return now
	}
	return NextFireTime(firstRun, every, now)
}
