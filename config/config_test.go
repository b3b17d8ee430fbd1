package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PLANTAI_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Sensors.Source != "dummy" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Watering.Threshold != 10 || cfg.Model.Seed != 42 || cfg.Model.TestFraction != 0.2 {
		t.Fatalf("unexpected model defaults: %+v %+v", cfg.Watering, cfg.Model)
	}
	if cfg.TelegramEnabled() || cfg.RabbitMQEnabled() {
		t.Fatal("optional integrations must be disabled by default")
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
database:
  dsn: /var/lib/plantai/plantai.db
sensors:
  source: i2c
  read_interval: 5m
  default_address: 0x49
watering:
  threshold: 7.5
telegram:
  bot_token: abc
  chat_id: 42
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("PLANTAI_CONFIG", path)
	t.Setenv("PLANTAI_WATERING_THRESHOLD", "12")
	t.Setenv("PLANTAI_SENSORS_READ_CYCLES", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.DSN != "/var/lib/plantai/plantai.db" {
		t.Fatalf("yaml dsn not applied: %q", cfg.Database.DSN)
	}
	if cfg.Sensors.Source != "i2c" || cfg.Sensors.ReadInterval != 5*time.Minute || cfg.Sensors.DefaultAddress != 0x49 {
		t.Fatalf("yaml sensors not applied: %+v", cfg.Sensors)
	}
	if cfg.Watering.Threshold != 12 {
		t.Fatalf("env must override yaml, got %v", cfg.Watering.Threshold)
	}
	if cfg.Sensors.ReadCycles != 3 {
		t.Fatalf("env read cycles not applied: %d", cfg.Sensors.ReadCycles)
	}
	if !cfg.TelegramEnabled() {
		t.Fatal("telegram should be enabled")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := Default()
	bad.Sensors.Source = "gpio"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown source to fail")
	}

	bad = Default()
	bad.Database.Driver = "mysql"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown driver to fail")
	}

	bad = Default()
	bad.Sensors.ReadInterval = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected zero interval to fail")
	}

	bad = Default()
	bad.Model.TestFraction = 1
	if err := bad.Validate(); err == nil {
		t.Fatal("expected test fraction of one to fail")
	}
}
