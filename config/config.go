// Package config loads service settings. Sources are applied in order, each
// overriding the last: built-in defaults, an optional YAML file, a .env file,
// then BANK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. BANK_STORE_BACKEND.
const EnvPrefix = "BANK"

type HTTPConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

type StoreConfig struct {
	// Backend is one of memory, postgres or gorm.
	Backend          string        `yaml:"backend" envconfig:"BACKEND"`
	DatabaseURL      string        `yaml:"database_url" envconfig:"DATABASE_URL"`
	GormDriver       string        `yaml:"gorm_driver" envconfig:"GORM_DRIVER"`
	WALPath          string        `yaml:"wal_path" envconfig:"WAL_PATH"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
}

type RedisConfig struct {
	// URL enables the deposito type cache when set.
	URL string        `yaml:"url" envconfig:"URL"`
	TTL time.Duration `yaml:"ttl" envconfig:"TTL"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

type Config struct {
	HTTP         HTTPConfig  `yaml:"http" envconfig:"HTTP"`
	Store        StoreConfig `yaml:"store" envconfig:"STORE"`
	Redis        RedisConfig `yaml:"redis" envconfig:"REDIS"`
	Log          LogConfig   `yaml:"log" envconfig:"LOG"`
	SeedDemoData bool        `yaml:"seed_demo_data" envconfig:"SEED_DEMO_DATA"`
}

// Default returns the settings used when nothing else is configured: an
// in-memory ledger with demo data on :8080.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Backend:          "memory",
			GormDriver:       "postgres",
			OperationTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		SeedDemoData: true,
	}
}

// Load builds the configuration. path names a YAML file and may be empty.
// envFiles are passed to godotenv; by default it reads ./.env, and a missing
// file is not an error. Variables already in the environment win over the
// .env file.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail late, at startup.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres", "gorm":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q (want memory, postgres or gorm)", c.Store.Backend)
	}
	if c.Store.Backend == "gorm" && c.Store.GormDriver != "postgres" && c.Store.GormDriver != "mysql" {
		return fmt.Errorf("unknown store.gorm_driver %q (want postgres or mysql)", c.Store.GormDriver)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	return nil
}
