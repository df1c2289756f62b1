package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/shaiso/Observa/internal/domain"
	"gopkg.in/yaml.v3"
)

// MigratedSuffix добавляется к перенесённому файлу конфигурации.
const MigratedSuffix = ".migrated"

// seedFile — формат старого файла конфигурации (YAML или JSON).
// Отсутствующие ключи берутся из конфигурации по умолчанию.
type seedFile struct {
	MeasurementFrequency *int     `yaml:"measurement_frequency"`
	FirstMeasurement     *string  `yaml:"first_measurement"`
	RGBCamera            *bool    `yaml:"rgb_camera"`
	MultispectralCamera  *bool    `yaml:"multispectral_camera"`
	NumberOfSensors      *int     `yaml:"number_of_sensors"`
	LengthOfAE           *float64 `yaml:"length_of_ae"`
}

// firstRunLayouts — форматы first_measurement в старых файлах.
var firstRunLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// SeedFromFile переносит конфигурацию из файла в хранилище и
// переименовывает файл в <path>.migrated. Отсутствие файла не ошибка:
// возвращается (nil, nil).
func (s *Service) SeedFromFile(ctx context.Context, path string) (*domain.RunConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	cfg, err := parseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}

	stored, err := s.store.PutConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store seeded config: %w", err)
	}

	if err := os.Rename(path, path+MigratedSuffix); err != nil {
		s.logger.Warn("failed to rename migrated config file", "path", path, "error", err)
	}

	s.logger.Info("measurement config migrated from file", "path", path, "config_id", stored.ID)
	return stored, nil
}

func parseSeed(data []byte) (domain.RunConfig, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.RunConfig{}, err
	}

	cfg := domain.DefaultRunConfig()
	if f.MeasurementFrequency != nil {
		cfg.FrequencyMinutes = *f.MeasurementFrequency
	}
	if f.FirstMeasurement != nil {
		first, err := parseFirstRun(*f.FirstMeasurement)
		if err != nil {
			return domain.RunConfig{}, err
		}
		cfg.FirstRun = first
	}
	if f.RGBCamera != nil {
		cfg.PrimaryCamera = *f.RGBCamera
	}
	if f.MultispectralCamera != nil {
		cfg.SecondaryCamera = *f.MultispectralCamera
	}
	if f.NumberOfSensors != nil {
		cfg.SensorCount = *f.NumberOfSensors
	}
	if f.LengthOfAE != nil {
		cfg.StageDurationMinutes = *f.LengthOfAE
	}
	return cfg, nil
}

// parseFirstRun разбирает время первого измерения. Время без зоны — UTC.
// Пустая строка означает «не задано».
func parseFirstRun(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range firstRunLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("first_measurement: unsupported time %q", s)
}
