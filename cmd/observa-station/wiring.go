package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Observa/internal/api"
	"github.com/shaiso/Observa/internal/config"
	"github.com/shaiso/Observa/internal/device"
	"github.com/shaiso/Observa/internal/domain"
	"github.com/shaiso/Observa/internal/healthcheck"
	"github.com/shaiso/Observa/internal/localdb"
	"github.com/shaiso/Observa/internal/orchestrator"
	"github.com/shaiso/Observa/internal/repo"
	"github.com/shaiso/Observa/internal/settings"
)

// runStore — репозиторий runs, нужный оркестратору и API.
type runStore interface {
	orchestrator.RunRepository
	api.RunReader
}

// storage — выбранное хранилище runs и конфигураций.
type storage struct {
	runs    runStore
	configs settings.ConfigStore
	close   func()
}

// openStorage открывает Postgres или SQLite по DB_DRIVER.
func openStorage(ctx context.Context, cfg config.DBConfig, clock clockwork.Clock, logger *slog.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := localdb.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite storage", "path", cfg.SQLitePath)
		return &storage{
			runs:    localdb.NewRunRepo(db),
			configs: localdb.NewConfigRepo(db, clock),
			close:   func() { db.Close() },
		}, nil

	default:
		pool, err := repo.NewPool(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("using postgres storage")
		return &storage{
			runs:    repo.NewRunRepo(pool),
			configs: repo.NewConfigRepo(pool),
			close:   pool.Close,
		}, nil
	}
}

// stationDevices — устройства станции.
type stationDevices struct {
	primary   orchestrator.CaptureDevice
	secondary orchestrator.CaptureDevice
	sensors   orchestrator.SensorArray
	probes    map[string]healthcheck.Device
}

// newDevices собирает устройства по DEVICE_MODE. Акустические датчики
// всегда читаются из DEVICE_FIXTURE_DIR.
func newDevices(cfg config.DeviceConfig, clock clockwork.Clock) (*stationDevices, error) {
	primaryName := string(domain.StageKindPrimaryCamera)
	secondaryName := string(domain.StageKindSecondaryCamera)

	d := &stationDevices{
		sensors: device.NewFileSensors(cfg.FixtureDir, 0, clock, cfg.Realtime),
		probes:  make(map[string]healthcheck.Device),
	}

	switch cfg.Mode {
	case config.DeviceModeFile:
		primary := device.NewFileCamera(primaryName, cfg.FixtureDir)
		secondary := device.NewFileCamera(secondaryName, cfg.FixtureDir)
		d.primary, d.secondary = primary, secondary
		d.probes[primaryName] = primary
		d.probes[secondaryName] = secondary

	case config.DeviceModeSnapshot:
		client := &http.Client{}
		if cfg.PrimaryCameraURL != "" {
			cam := device.NewSnapshotCamera(primaryName, cfg.PrimaryCameraURL, client, cfg.CaptureTimeout)
			d.primary = cam
			d.probes[primaryName] = cam
		}
		if cfg.SecondaryCameraURL != "" {
			cam := device.NewSnapshotCamera(secondaryName, cfg.SecondaryCameraURL, client, cfg.CaptureTimeout)
			d.secondary = cam
			d.probes[secondaryName] = cam
		}

	default:
		return nil, fmt.Errorf("unknown device mode %q", cfg.Mode)
	}

	return d, nil
}
