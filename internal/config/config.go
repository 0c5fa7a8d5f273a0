package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr           string        `yaml:"addr"`
	JWTSecret      string        `yaml:"jwt_secret"`
	APITimeout     time.Duration `yaml:"timeout"`
	DatabasePath   string        `yaml:"database_path"`
	TokenDuration  time.Duration `yaml:"token_duration"`
	MigrateOnStart bool          `yaml:"migrate_on_start"`
	LogLevel       string        `yaml:"log_level"`
	Storage        StorageConfig `yaml:"storage"`
	EngineConfig   EngineConfig  `yaml:"engine"`
}

type StorageConfig struct {
	// Driver is "sqlite" (DatabasePath) or "postgres" (DatabaseURL).
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
}

type EngineConfig struct {
	NotificationRetention int `yaml:"notification_retention"`
	ActivityWorkers       int `yaml:"activity_workers"`
	ActivityMaxAttempts   int `yaml:"activity_max_attempts"`
}

// LoadConfig builds the configuration from defaults, the environment (a
// local .env file included) and, when path is set, a YAML file.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is fine; the process environment still applies
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Addr:           getEnv("SERVICEHUB_ADDR", ":8080"),
		JWTSecret:      getEnv("SERVICEHUB_JWT_SECRET", insecureJWTSecret),
		APITimeout:     15 * time.Second,
		DatabasePath:   getEnv("SERVICEHUB_DATABASE_PATH", "servicehub.db"),
		TokenDuration:  1 * time.Hour,
		MigrateOnStart: getEnvBool("SERVICEHUB_MIGRATE_ON_START", true),
		LogLevel:       getEnv("SERVICEHUB_LOG_LEVEL", "info"),
		Storage: StorageConfig{
			Driver:      getEnv("SERVICEHUB_STORAGE", DriverSQLite),
			DatabaseURL: getEnv("SERVICEHUB_DATABASE_URL", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate checks the configuration and fills engine defaults.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == insecureJWTSecret && !IsDevelopment() {
		errs = append(errs, errors.New("jwt_secret uses the insecure default; set SERVICEHUB_JWT_SECRET or SERVICEHUB_ENV=development"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}

	switch c.Storage.Driver {
	case "", DriverSQLite:
		c.Storage.Driver = DriverSQLite
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("database_path is required for sqlite storage"))
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage.database_url is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.EngineConfig.NotificationRetention < 0 {
		errs = append(errs, errors.New("engine.notification_retention must not be negative"))
	}
	if c.EngineConfig.NotificationRetention == 0 {
		c.EngineConfig.NotificationRetention = 20
	}
	if c.EngineConfig.ActivityWorkers <= 0 {
		c.EngineConfig.ActivityWorkers = 2
	}
	if c.EngineConfig.ActivityMaxAttempts <= 0 {
		c.EngineConfig.ActivityMaxAttempts = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether SERVICEHUB_ENV is "development".
func IsDevelopment() bool {
	return strings.EqualFold(os.Getenv("SERVICEHUB_ENV"), "development")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
