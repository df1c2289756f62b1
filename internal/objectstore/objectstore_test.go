package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

func validConfig() Config {
	return Config{
		Endpoint:  "localhost:9000",
		AccessKey: "observa",
		SecretKey: "observaminio",
		Region:    "us-east-1",
		Bucket:    "measurements",
	}
}

// --- Config Tests ---

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"scheme in endpoint", func(c *Config) { c.Endpoint = "http://localhost:9000" }},
		{"no endpoint", func(c *Config) { c.Endpoint = " " }},
		{"no access key", func(c *Config) { c.AccessKey = "" }},
		{"no secret key", func(c *Config) { c.SecretKey = "" }},
		{"no region", func(c *Config) { c.Region = "" }},
		{"no bucket", func(c *Config) { c.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = "https://s3.example.com"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for endpoint with scheme")
	}
}

// --- Key Tests ---

func TestObjectKey(t *testing.T) {
	tests := []struct {
		handle, name string
		want         string
		wantErr      bool
	}{
		{"measurements/abc", "RGB_20240101120000.png", "measurements/abc/RGB_20240101120000.png", false},
		{"/measurements/abc/", "AE_sensor1_x.txt", "measurements/abc/AE_sensor1_x.txt", false},
		{"measurements//abc", "a.png", "measurements/abc/a.png", false},
		{"measurements/abc", "../escape.png", "", true},
		{"measurements/abc", "", "", true},
		{"/", "a.png", "", true},
	}

	for _, tt := range tests {
		got, err := objectKey(tt.handle, tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("objectKey(%q, %q): expected ErrInvalidKey, got %v", tt.handle, tt.name, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("objectKey(%q, %q) = %q, %v; want %q", tt.handle, tt.name, got, err, tt.want)
		}
	}
}

// --- Store Tests ---

func TestStore_RequiresAuthenticate(t *testing.T) {
	store, err := New(validConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := store.EnsurePath(context.Background(), "measurements/x"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("EnsurePath: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := store.Upload(context.Background(), "measurements/x", "a.png", []byte("x"), "image/png"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Upload: expected ErrNotAuthenticated, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	missing := minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	if err := mapError(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	denied := minio.ErrorResponse{Code: "AccessDenied"}
	if err := mapError(denied); errors.Is(err, ErrNotFound) {
		t.Error("AccessDenied must not map to ErrNotFound")
	}
}
