package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envPrefix = "PLANTAI"

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Watering WateringConfig `yaml:"watering"`
	Model    ModelConfig    `yaml:"model"`
	Log      LogConfig      `yaml:"log"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Firebase FirebaseConfig `yaml:"firebase"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Telegram TelegramConfig `yaml:"telegram"`
	Weather  WeatherConfig  `yaml:"weather"`
	CSV      CSVConfig      `yaml:"csv"`
	Health   HealthConfig   `yaml:"health"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type SensorsConfig struct {
	Source         string        `yaml:"source"` // i2c, dummy, mqtt or firebase
	Mode           string        `yaml:"mode"`   // interval or debug
	ReadInterval   time.Duration `yaml:"read_interval" split_words:"true"`
	ReadCycles     int           `yaml:"read_cycles" split_words:"true"`
	I2CBus         string        `yaml:"i2c_bus" envconfig:"I2C_BUS"`
	DefaultAddress int           `yaml:"default_address" split_words:"true"`
}

type WateringConfig struct {
	// Moisture increase in percentage points that counts as watering
	Threshold float64 `yaml:"threshold"`
}

type ModelConfig struct {
	Trees        int     `yaml:"trees"`
	MaxDepth     int     `yaml:"max_depth" split_words:"true"`
	MinLeaf      int     `yaml:"min_leaf" split_words:"true"`
	Seed         int64   `yaml:"seed"`
	TestFraction float64 `yaml:"test_fraction" split_words:"true"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id" split_words:"true"`
}

type FirebaseConfig struct {
	DbUrl              string `yaml:"db_url" split_words:"true"`
	ServiceAccountJSON string `yaml:"service_account_json" envconfig:"SERVICE_ACCOUNT_JSON"`
	Path               string `yaml:"path"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" split_words:"true"`
	ChatID   int64  `yaml:"chat_id" split_words:"true"`
}

type WeatherConfig struct {
	GeocodeURL  string `yaml:"geocode_url" split_words:"true"`
	ForecastURL string `yaml:"forecast_url" split_words:"true"`
	Location    string `yaml:"location"`
	Timezone    string `yaml:"timezone"`
}

type CSVConfig struct {
	Import string `yaml:"import"`
	Export string `yaml:"export"`
}

type HealthConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "plantai.db",
		},
		Sensors: SensorsConfig{
			Source:         "dummy",
			Mode:           "interval",
			ReadInterval:   10 * time.Minute,
			ReadCycles:     5,
			DefaultAddress: 0x48,
		},
		Watering: WateringConfig{
			Threshold: 10.0,
		},
		Model: ModelConfig{
			Trees:        100,
			MinLeaf:      1,
			Seed:         42,
			TestFraction: 0.2,
		},
		Log: LogConfig{
			Level: "info",
		},
		MQTT: MQTTConfig{
			Topic:    "plantai/soil",
			ClientID: "plantai-monitor",
		},
		Firebase: FirebaseConfig{
			Path: "soil-data",
		},
		RabbitMQ: RabbitMQConfig{
			Exchange: "plantai",
		},
		Weather: WeatherConfig{
			GeocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
			ForecastURL: "https://api.open-meteo.com/v1/forecast",
			Timezone:    "Europe/Berlin",
		},
		CSV: CSVConfig{
			Import: "measurements_import.csv",
			Export: "measurements.csv",
		},
		Health: HealthConfig{
			Timeout: 30 * time.Minute,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// (PLANTAI_CONFIG, default config.yaml) and PLANTAI_* environment variables,
// in that order of precedence.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := Default()

	path := os.Getenv(envPrefix + "_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if err := config.loadFile(path); err != nil {
		return nil, err
	}

	if err := envconfig.Process(envPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	switch c.Sensors.Source {
	case "i2c", "dummy", "mqtt", "firebase":
	default:
		return fmt.Errorf("unsupported sensor source: %q", c.Sensors.Source)
	}
	switch c.Sensors.Mode {
	case "interval", "debug":
	default:
		return fmt.Errorf("unsupported read mode: %q", c.Sensors.Mode)
	}
	if c.Sensors.ReadInterval <= 0 {
		return fmt.Errorf("read interval must be positive, got %s", c.Sensors.ReadInterval)
	}
	if c.Sensors.ReadCycles <= 0 {
		return fmt.Errorf("read cycles must be positive, got %d", c.Sensors.ReadCycles)
	}
	if c.Watering.Threshold < 0 {
		return fmt.Errorf("watering threshold must not be negative, got %v", c.Watering.Threshold)
	}
	if c.Model.TestFraction < 0 || c.Model.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be in [0, 1), got %v", c.Model.TestFraction)
	}
	return nil
}

// TelegramEnabled reports whether bot credentials are configured
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != 0
}

// RabbitMQEnabled reports whether watering events should be published
func (c *Config) RabbitMQEnabled() bool {
	return c.RabbitMQ.URL != ""
}
