package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Observa/internal/config"
)

// --- Startup Tests ---

func TestRun_StartupFailureClosesStorage(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "measurement_config.yaml")
	if err := os.WriteFile(seed, []byte("measurement_frequency: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "observa.db"))
	t.Setenv("CONFIG_SEED_FILE", seed)
	t.Setenv("DEVICE_MODE", config.DeviceModeFile)
	t.Setenv("DEVICE_FIXTURE_DIR", dir)
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("LOG_LEVEL", "ERROR")

	var closed bool
	orig := newStorage
	newStorage = func(ctx context.Context, cfg config.DBConfig, clock clockwork.Clock, logger *slog.Logger) (*storage, error) {
		s, err := orig(ctx, cfg, clock, logger)
		if err != nil {
			return nil, err
		}
		closeDB := s.close
		s.close = func() {
			closed = true
			closeDB()
		}
		return s, nil
	}
	t.Cleanup(func() { newStorage = orig })

	if code := run(); code != 1 {
		t.Fatalf("expected exit code 1 for invalid seed file, got %d", code)
	}
	if !closed {
		t.Error("storage must be closed when startup fails")
	}
	if _, err := os.Stat(seed); err != nil {
		t.Errorf("invalid seed file must be kept: %v", err)
	}
}
