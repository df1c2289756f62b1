package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Observa/internal/healthcheck"
	"github.com/shaiso/Observa/internal/objectstore"
	"github.com/shaiso/Observa/internal/repo"
	"github.com/shaiso/Observa/internal/scheduler"
)

// Драйверы хранилища runs и конфигураций.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Режимы устройств.
const (
	DeviceModeFile     = "file"
	DeviceModeSnapshot = "snapshot"
)

// Значения по умолчанию.
const (
	DefaultHTTPPort       = "8080"
	DefaultSQLitePath     = "data/observa.db"
	DefaultFixtureDir     = "data/fixtures"
	DefaultSeedFile       = "data/measurement_config.yaml"
	DefaultDeviceCheck    = "*/15 * * * *"
	DefaultCaptureTimeout = 30 * time.Second
	DefaultErrorBackoff   = 60 * time.Second
)

// Config — конфигурация станции, собранная из переменных окружения.
type Config struct {
	HTTPPort string

	DB       DBConfig
	Storage  objectstore.Config
	MQ       MQConfig
	Devices  DeviceConfig
	Schedule ScheduleConfig

	// SeedFile — старый файл конфигурации измерений для переноса в БД.
	SeedFile string

	LogLevel  string
	LogFormat string
}

// DBConfig — выбор хранилища.
type DBConfig struct {
	Driver     string // postgres | sqlite
	URL        string
	SQLitePath string
}

// MQConfig — брокер сообщений. Пустой URL отключает события.
type MQConfig struct {
	URL string
}

// Enabled сообщает, настроен ли брокер.
func (c MQConfig) Enabled() bool {
	return c.URL != ""
}

// DeviceConfig — устройства станции.
type DeviceConfig struct {
	Mode               string // file | snapshot
	FixtureDir         string
	Realtime           bool // file-датчики ждут длительность записи
	PrimaryCameraURL   string
	SecondaryCameraURL string
	CaptureTimeout     time.Duration
	CheckCron          string
}

// ScheduleConfig — параметры планировщика.
type ScheduleConfig struct {
	ErrorBackoff time.Duration
	MissedPolicy scheduler.MissedPolicy
}

// Load загружает .env файлы и читает конфигурацию из окружения.
func Load() (*Config, error) {
	LoadEnvFiles()
	return FromEnv()
}

// FromEnv читает конфигурацию из окружения без загрузки .env файлов.
func FromEnv() (*Config, error) {
	useSSL, err := Bool("S3_USE_SSL", false)
	if err != nil {
		return nil, err
	}
	realtime, err := Bool("DEVICE_REALTIME", false)
	if err != nil {
		return nil, err
	}
	captureTimeout, err := Duration("DEVICE_CAPTURE_TIMEOUT", DefaultCaptureTimeout)
	if err != nil {
		return nil, err
	}
	backoff, err := Duration("SCHEDULER_ERROR_BACKOFF", DefaultErrorBackoff)
	if err != nil {
		return nil, err
	}
	policy, err := scheduler.ParseMissedPolicy(String("SCHEDULER_MISSED_POLICY", ""))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_MISSED_POLICY: %w", err)
	}

	cfg := &Config{
		HTTPPort: String("HTTP_PORT", DefaultHTTPPort),
		DB: DBConfig{
			Driver:     strings.ToLower(String("DB_DRIVER", DriverPostgres)),
			URL:        String("DB_URL", repo.DefaultDSN),
			SQLitePath: String("SQLITE_PATH", DefaultSQLitePath),
		},
		Storage: objectstore.Config{
			Endpoint:  String("S3_ENDPOINT", "localhost:9000"),
			AccessKey: String("S3_ACCESS_KEY", "observa"),
			SecretKey: String("S3_SECRET_KEY", "observa-secret"),
			Region:    String("S3_REGION", "us-east-1"),
			Bucket:    String("S3_BUCKET", "observa-measurements"),
			UseSSL:    useSSL,
		},
		MQ: MQConfig{
			URL: String("RABBITMQ_URL", ""),
		},
		Devices: DeviceConfig{
			Mode:               strings.ToLower(String("DEVICE_MODE", DeviceModeFile)),
			FixtureDir:         String("DEVICE_FIXTURE_DIR", DefaultFixtureDir),
			Realtime:           realtime,
			PrimaryCameraURL:   String("PRIMARY_CAMERA_URL", ""),
			SecondaryCameraURL: String("SECONDARY_CAMERA_URL", ""),
			CaptureTimeout:     captureTimeout,
			CheckCron:          String("DEVICE_CHECK_CRON", DefaultDeviceCheck),
		},
		Schedule: ScheduleConfig{
			ErrorBackoff: backoff,
			MissedPolicy: policy,
		},
		SeedFile:  String("CONFIG_SEED_FILE", DefaultSeedFile),
		LogLevel:  String("LOG_LEVEL", "INFO"),
		LogFormat: String("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT is required")
	}

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.URL == "" {
			return errors.New("DB_URL is required for postgres driver")
		}
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for sqlite driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER: unknown driver %q", c.DB.Driver)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	switch c.Devices.Mode {
	case DeviceModeFile:
		if c.Devices.FixtureDir == "" {
			return errors.New("DEVICE_FIXTURE_DIR is required in file mode")
		}
	case DeviceModeSnapshot:
		if c.Devices.PrimaryCameraURL == "" && c.Devices.SecondaryCameraURL == "" {
			return errors.New("snapshot mode needs PRIMARY_CAMERA_URL or SECONDARY_CAMERA_URL")
		}
	default:
		return fmt.Errorf("DEVICE_MODE: unknown mode %q", c.Devices.Mode)
	}
	if c.Devices.CaptureTimeout <= 0 {
		return errors.New("DEVICE_CAPTURE_TIMEOUT must be positive")
	}
	if c.Devices.CheckCron != "" {
		if err := healthcheck.ValidateSchedule(c.Devices.CheckCron); err != nil {
			return fmt.Errorf("DEVICE_CHECK_CRON: %w", err)
		}
	}

	if c.Schedule.ErrorBackoff <= 0 {
		return errors.New("SCHEDULER_ERROR_BACKOFF must be positive")
	}
	return nil
}

// Addr возвращает адрес HTTP сервера.
func (c *Config) Addr() string {
	return ":" + c.HTTPPort
}
