package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaiso/Observa/internal/domain"
)

// --- Fakes ---

type memoryStore struct {
	versions []domain.RunConfig
	getErr   error
	putErr   error
}

func (m *memoryStore) GetConfig(context.Context) (*domain.RunConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if len(m.versions) == 0 {
		return m.PutConfig(context.Background(), domain.DefaultRunConfig())
	}
	cfg := m.versions[len(m.versions)-1]
	return &cfg, nil
}

func (m *memoryStore) PutConfig(_ context.Context, cfg domain.RunConfig) (*domain.RunConfig, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	cfg.ID = int64(len(m.versions) + 1)
	m.versions = append(m.versions, cfg)
	return &cfg, nil
}

type scheduleCall struct {
	frequency int
	firstRun  *time.Time
	configID  *int64
}

type fakeScheduler struct {
	calls []scheduleCall
}

func (f *fakeScheduler) SetNewSchedule(frequency int, firstRun *time.Time, configID *int64) {
	f.calls = append(f.calls, scheduleCall{frequency, firstRun, configID})
}

type fakeEvents struct {
	published []int64
	err       error
}

func (f *fakeEvents) PublishConfigUpdated(_ context.Context, cfg *domain.RunConfig) error {
	f.published = append(f.published, cfg.ID)
	return f.err
}

func newService(store *memoryStore, sched *fakeScheduler, events *fakeEvents, seed string) *Service {
	cfg := Config{
		Store:     store,
		Scheduler: sched,
		SeedFile:  seed,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if events != nil {
		cfg.Events = events
	}
	return New(cfg)
}

// --- Update Tests ---

func TestUpdate_StoresNewVersionAndReschedules(t *testing.T) {
	store := &memoryStore{}
	sched := &fakeScheduler{}
	events := &fakeEvents{}
	svc := newService(store, sched, events, "")

	first := time.Date(2024, 1, 1, 6, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	cfg := domain.RunConfig{FrequencyMinutes: 30, FirstRun: &first, PrimaryCamera: true, SensorCount: 2, StageDurationMinutes: 5}

	stored, err := svc.Update(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ID == 0 {
		t.Fatal("stored config must have an identity")
	}
	if stored.FirstRun.Location() != time.UTC || !stored.FirstRun.Equal(first) {
		t.Errorf("first run should be normalized to UTC, got %v", stored.FirstRun)
	}

	if len(sched.calls) != 1 {
		t.Fatalf("expected 1 reschedule, got %d", len(sched.calls))
	}
	call := sched.calls[0]
	if call.frequency != 30 || call.configID == nil || *call.configID != stored.ID {
		t.Errorf("unexpected reschedule %+v", call)
	}
	if len(events.published) != 1 || events.published[0] != stored.ID {
		t.Errorf("expected config.updated for %d, got %v", stored.ID, events.published)
	}
}

func TestUpdate_InvalidConfigNeverReachesScheduler(t *testing.T) {
	store := &memoryStore{}
	sched := &fakeScheduler{}
	svc := newService(store, sched, nil, "")

	_, err := svc.Update(context.Background(), domain.RunConfig{FrequencyMinutes: 10, StageDurationMinutes: 10, SensorCount: 1})

	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) || !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(store.versions) != 0 || len(sched.calls) != 0 {
		t.Error("invalid config must not be stored or scheduled")
	}
}

func TestUpdate_SameSettingsKeepsIdentity(t *testing.T) {
	store := &memoryStore{}
	sched := &fakeScheduler{}
	events := &fakeEvents{}
	svc := newService(store, sched, events, "")
	ctx := context.Background()

	current, _ := svc.Get(ctx)
	same := *current
	same.ID = 0

	got, err := svc.Update(ctx, same)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != current.ID {
		t.Errorf("expected identity %d, got %d", current.ID, got.ID)
	}
	if len(store.versions) != 1 {
		t.Errorf("no new version should be stored, have %d", len(store.versions))
	}
	if len(sched.calls) != 1 || *sched.calls[0].configID != current.ID {
		t.Errorf("scheduler should see the unchanged identity, got %+v", sched.calls)
	}
	if len(events.published) != 0 {
		t.Error("unchanged config must not be published")
	}
}

func TestUpdate_StoreFailure(t *testing.T) {
	store := &memoryStore{putErr: errors.New("disk full")}
	store.versions = []domain.RunConfig{domain.DefaultRunConfig()}
	sched := &fakeScheduler{}
	svc := newService(store, sched, nil, "")

	_, err := svc.Update(context.Background(), domain.RunConfig{FrequencyMinutes: 15})
	if err == nil {
		t.Fatal("expected store error")
	}
	if len(sched.calls) != 0 {
		t.Error("failed update must not reschedule")
	}
}

func TestUpdate_PublishFailureIsNotFatal(t *testing.T) {
	svc := newService(&memoryStore{}, &fakeScheduler{}, &fakeEvents{err: errors.New("broker down")}, "")

	if _, err := svc.Update(context.Background(), domain.RunConfig{FrequencyMinutes: 15}); err != nil {
		t.Errorf("publish failure should be logged only, got %v", err)
	}
}

// --- Initialize Tests ---

func TestInitialize_ArmsSchedulerWithStoredConfig(t *testing.T) {
	store := &memoryStore{}
	sched := &fakeScheduler{}
	svc := newService(store, sched, nil, "")

	cfg, err := svc.Initialize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FrequencyMinutes != domain.DefaultFrequencyMinutes {
		t.Errorf("expected default frequency, got %d", cfg.FrequencyMinutes)
	}
	if len(sched.calls) != 1 || *sched.calls[0].configID != cfg.ID {
		t.Errorf("unexpected scheduler calls %+v", sched.calls)
	}
}

func TestInitialize_StoreError(t *testing.T) {
	svc := newService(&memoryStore{getErr: errors.New("db down")}, &fakeScheduler{}, nil, "")

	if _, err := svc.Initialize(context.Background()); err == nil {
		t.Error("expected error")
	}
}

// --- Seed Tests ---

func TestSeedFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "measurement_config.yaml")
	content := `
measurement_frequency: 45
first_measurement: 2024-03-01T10:00:00Z
rgb_camera: false
multispectral_camera: true
number_of_sensors: 4
length_of_ae: 2.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &memoryStore{}
	sched := &fakeScheduler{}
	svc := newService(store, sched, nil, path)

	cfg, err := svc.Initialize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.FrequencyMinutes != 45 || cfg.PrimaryCamera || !cfg.SecondaryCamera || cfg.SensorCount != 4 || cfg.StageDurationMinutes != 2.5 {
		t.Errorf("unexpected seeded config %+v", cfg)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if cfg.FirstRun == nil || !cfg.FirstRun.Equal(want) {
		t.Errorf("unexpected first run %v", cfg.FirstRun)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("seed file should be renamed")
	}
	if _, err := os.Stat(path + MigratedSuffix); err != nil {
		t.Errorf("migrated file missing: %v", err)
	}
	if len(store.versions) != 1 {
		t.Errorf("expected exactly one stored version, got %d", len(store.versions))
	}
}

func TestSeedFromFile_JSONWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurement_config.json")
	if err := os.WriteFile(path, []byte(`{"measurement_frequency": 90, "first_measurement": "2024-03-01 10:00:00"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newService(&memoryStore{}, &fakeScheduler{}, nil, "")
	cfg, err := svc.SeedFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := domain.DefaultRunConfig()
	if cfg.FrequencyMinutes != 90 || cfg.PrimaryCamera != def.PrimaryCamera || cfg.SensorCount != def.SensorCount {
		t.Errorf("missing keys should keep defaults, got %+v", cfg)
	}
	if cfg.FirstRun.Hour() != 10 || cfg.FirstRun.Location() != time.UTC {
		t.Errorf("zone-less time should be UTC, got %v", cfg.FirstRun)
	}
}

func TestSeedFromFile_Missing(t *testing.T) {
	svc := newService(&memoryStore{}, &fakeScheduler{}, nil, "")

	cfg, err := svc.SeedFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || cfg != nil {
		t.Errorf("missing file should be ignored, got %+v, %v", cfg, err)
	}
}

func TestSeedFromFile_InvalidIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurement_config.yaml")
	if err := os.WriteFile(path, []byte("measurement_frequency: 5\nlength_of_ae: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &memoryStore{}
	svc := newService(store, &fakeScheduler{}, nil, "")

	if _, err := svc.SeedFromFile(context.Background(), path); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("invalid seed file must stay in place")
	}
	if len(store.versions) != 0 {
		t.Error("invalid seed must not be stored")
	}
}

func TestParseFirstRun(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantNil bool
		wantErr bool
	}{
		{"2023-04-26T08:00:00Z", time.Date(2023, 4, 26, 8, 0, 0, 0, time.UTC), false, false},
		{"2023-04-26T10:00:00+02:00", time.Date(2023, 4, 26, 8, 0, 0, 0, time.UTC), false, false},
		{"2023-04-26T08:00:00", time.Date(2023, 4, 26, 8, 0, 0, 0, time.UTC), false, false},
		{"  ", time.Time{}, true, false},
		{"yesterday", time.Time{}, false, true},
	}

	for _, tt := range tests {
		got, err := parseFirstRun(tt.in)
		switch {
		case tt.wantErr:
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
		case tt.wantNil:
			if got != nil || err != nil {
				t.Errorf("%q: expected nil, got %v, %v", tt.in, got, err)
			}
		default:
			if err != nil || !got.Equal(tt.want) {
				t.Errorf("%q: got %v, %v; want %v", tt.in, got, err, tt.want)
			}
		}
	}
}
