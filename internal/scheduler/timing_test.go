package scheduler

import (
	"testing"
	"time"
)

// --- NextFireTime Tests ---

func TestNextFireTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	hour := time.Hour

	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name     string
		firstRun *time.Time
		every    time.Duration
		want     time.Time
	}{
		{"nil first run", nil, hour, now.Add(hour)},
		{"future first run kept", at(3 * time.Minute), hour, now.Add(3 * time.Minute)},
		{"200 minutes ago, hourly", at(-200 * time.Minute), hour, now.Add(40 * time.Minute)},
		{"exactly now", at(0), hour, now.Add(hour)},
		{"exact multiple in the past", at(-2 * hour), hour, now.Add(hour)},
		{"one second ago", at(-time.Second), 10 * time.Minute, now.Add(10*time.Minute - time.Second)},
		{"years ago", at(-3 * 365 * 24 * hour), 7 * time.Minute, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextFireTime(tt.firstRun, tt.every, now)

			if !got.After(now) {
				t.Fatalf("next fire %v must be after now %v", got, now)
			}
			if tt.firstRun != nil {
				// got == firstRun + k*every, k минимальный
				offset := got.Sub(*tt.firstRun)
				if offset%tt.every != 0 {
					t.Errorf("offset %v is not a multiple of %v", offset, tt.every)
				}
				if prev := got.Add(-tt.every); prev.After(now) && !prev.Before(*tt.firstRun) {
					t.Errorf("k is not minimal: %v is already in the future", prev)
				}
			}
			if !tt.want.IsZero() && !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNextFireTime_FourIntervalsForTwoHundredMinutes(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	first := now.Add(-200 * time.Minute)

	got := NextFireTime(&first, 60*time.Minute, now)

	if want := first.Add(4 * 60 * time.Minute); !got.Equal(want) {
		t.Errorf("expected first_run + 4*60m = %v, got %v", want, got)
	}
}

// --- MissedPolicy Tests ---

func TestParseMissedPolicy(t *testing.T) {
	for in, want := range map[string]MissedPolicy{
		"":              MissedSkip,
		"skip":          MissedSkip,
		"catch-up-once": MissedCatchUpOnce,
	} {
		got, err := ParseMissedPolicy(in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := ParseMissedPolicy("run-all"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestArmTime_CatchUpOnlyForStaleFirstRun(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	if got := armTime(MissedCatchUpOnce, &future, time.Hour, now); !got.Equal(future) {
		t.Errorf("future first run should be kept, got %v", got)
	}
	if got := armTime(MissedCatchUpOnce, &past, time.Hour, now); !got.Equal(now) {
		t.Errorf("stale first run should fire now, got %v", got)
	}
	if got := armTime(MissedSkip, &past, time.Hour, now); !got.Equal(past.Add(time.Hour)) {
		t.Errorf("skip policy should align to next interval, got %v", got)
	}
	if got := armTime(MissedCatchUpOnce, nil, time.Hour, now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("nil first run should wait one interval, got %v", got)
	}
}
