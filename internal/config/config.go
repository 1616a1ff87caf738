package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the service settings. Values come from the YAML file and
// can be overridden by environment variables.
type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string        `yaml:"storage_path" env:"STORAGE_PATH" env-default:"./segments.db"`
	Log         LogConfig     `yaml:"log"`
	HTTP        HTTPConfig    `yaml:"http"`
	Events      EventsConfig  `yaml:"events"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:"," env-default:"*"`
}

// EventsConfig controls publishing of segment changes to Kafka.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled" env:"EVENTS_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"EVENTS_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"EVENTS_TOPIC" env-default:"machine.segments"`
	// RetryInterval is how often events that failed to publish are retried.
	RetryInterval  time.Duration `yaml:"retry_interval" env:"EVENTS_RETRY_INTERVAL" env-default:"30s"`
	QueueRetention time.Duration `yaml:"queue_retention" env:"EVENTS_QUEUE_RETENTION" env-default:"168h"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE" env-default:"segment_tracker"`
}

// LoadConfig reads the configuration at path. A missing file is not an
// error: defaults and environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			return validate(&cfg)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return validate(&cfg)
}

func validate(cfg *Config) (*Config, error) {
	if cfg.StoragePath == "" {
		return nil, errors.New("storage_path must be set")
	}
	if cfg.Events.Enabled && len(cfg.Events.Brokers) == 0 {
		return nil, errors.New("events.brokers must be set when events are enabled")
	}
	if cfg.Events.Enabled && cfg.Events.RetryInterval <= 0 {
		return nil, errors.New("events.retry_interval must be positive")
	}
	return cfg, nil
}
