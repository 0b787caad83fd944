package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Occupancy     OccupancyConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         string `env:"DB_PORT" envDefault:"5432"`
	User         string `env:"DB_USER" envDefault:"rentwise"`
	Password     string `env:"DB_PASSWORD"`
	Database     string `env:"DB_NAME" envDefault:"rentwise"`
	SSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

// RedisConfig holds the event broker configuration. An empty address
// disables Redis and notifications are only logged.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	OTELEnabled     bool          `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName     string        `env:"OTEL_SERVICE_NAME" envDefault:"rentwise"`
	ServiceVersion  string        `env:"OTEL_SERVICE_VERSION" envDefault:"0.1.0"`
	OTLPEndpoint    string        `env:"OTEL_TRACES_ENDPOINT"`
	SamplingRate    float64       `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
	MetricsEndpoint string        `env:"OTEL_METRICS_ENDPOINT"`
	MetricsInterval time.Duration `env:"OTEL_METRICS_INTERVAL" envDefault:"30s"`
}

// OccupancyConfig tunes the assignment engine
type OccupancyConfig struct {
	DefaultLeaseMonths  int           `env:"OCCUPANCY_DEFAULT_LEASE_MONTHS" envDefault:"12"`
	DefaultTenancyType  string        `env:"OCCUPANCY_DEFAULT_TENANCY_TYPE" envDefault:"fixed_term"`
	TxTimeout           time.Duration `env:"OCCUPANCY_TX_TIMEOUT" envDefault:"10s"`
	DispatchWorkers     int           `env:"OCCUPANCY_DISPATCH_WORKERS" envDefault:"4"`
	DispatchQueue       int           `env:"OCCUPANCY_DISPATCH_QUEUE" envDefault:"256"`
	SyncConcurrency     int           `env:"OCCUPANCY_SYNC_CONCURRENCY" envDefault:"4"`
	SyncInterval        time.Duration `env:"OCCUPANCY_SYNC_INTERVAL" envDefault:"1h"`
	DispatchStopTimeout time.Duration `env:"OCCUPANCY_DISPATCH_STOP_TIMEOUT" envDefault:"10s"`
}

// LoadDotEnv loads the given env files that exist. Variables already set in
// the environment win.
func LoadDotEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if c.Occupancy.DefaultLeaseMonths <= 0 {
		errs = append(errs, errors.New("OCCUPANCY_DEFAULT_LEASE_MONTHS must be positive"))
	}
	switch c.Occupancy.DefaultTenancyType {
	case "fixed_term", "month_to_month":
	default:
		errs = append(errs, fmt.Errorf("OCCUPANCY_DEFAULT_TENANCY_TYPE %q is not supported", c.Occupancy.DefaultTenancyType))
	}
	if c.Occupancy.DispatchWorkers <= 0 || c.Occupancy.DispatchQueue <= 0 {
		errs = append(errs, errors.New("OCCUPANCY_DISPATCH_WORKERS and OCCUPANCY_DISPATCH_QUEUE must be positive"))
	}
	if c.Occupancy.SyncConcurrency <= 0 {
		errs = append(errs, errors.New("OCCUPANCY_SYNC_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}
