package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"levelscout/internal/model"
)

// Pair names one market + granularity combination the service works on.
type Pair struct {
	Market      string `yaml:"market"`
	Granularity string `yaml:"granularity"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`
	Runner struct {
		Lookback      int `yaml:"lookback"`
		IngestWorkers int `yaml:"ingest_workers"`
	} `yaml:"runner"`
	Schedule struct {
		TriggerCron string `yaml:"trigger_cron"`
		Pairs       []Pair `yaml:"pairs"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("TRIGGER_CRON"); v != "" {
		cfg.Schedule.TriggerCron = v
	}
	if v := os.Getenv("LOOKBACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runner.Lookback = n
		}
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8085"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.SQLitePath == "" && cfg.Database.PostgresDSN == "" {
		cfg.Database.SQLitePath = "data/levelscout.db"
	}
	if cfg.Runner.Lookback == 0 {
		cfg.Runner.Lookback = 15
	}
	if cfg.Runner.IngestWorkers == 0 {
		cfg.Runner.IngestWorkers = 4
	}
	if cfg.Schedule.TriggerCron == "" {
		cfg.Schedule.TriggerCron = "0 */15 * * * *"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Runner.Lookback <= 0 {
		return fmt.Errorf("runner.lookback must be positive")
	}
	for _, p := range c.Schedule.Pairs {
		if p.Market == "" {
			return fmt.Errorf("schedule.pairs: market is required")
		}
		if _, err := model.GranularityDuration(p.Granularity); err != nil {
			return fmt.Errorf("schedule.pairs: %w", err)
		}
	}
	return nil
}
