package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the media snapshot
// store and its sync cycle.
type Config struct {
	DBPath    string `env:"MEDIASNAP_DB_PATH" envDefault:"mediasnap.sqlite"`
	LogLevel  string `env:"MEDIASNAP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MEDIASNAP_LOG_FORMAT" envDefault:"json"` // Options: "json" or "console"

	// Sync cycle tuning
	StageBatchSize     int   `env:"MEDIASNAP_STAGE_BATCH_SIZE" envDefault:"500"`
	CollectPageSize    int   `env:"MEDIASNAP_COLLECT_PAGE_SIZE" envDefault:"1000"`
	StaleAfterVersions int64 `env:"MEDIASNAP_STALE_AFTER_VERSIONS" envDefault:"3"`
	DeleteRemote       bool  `env:"MEDIASNAP_DELETE_REMOTE" envDefault:"true"`

	// Metrics endpoint, e.g. ":9102"; empty disables it.
	MetricsAddr string `env:"MEDIASNAP_METRICS_ADDR"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env defaults cannot guard.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("MEDIASNAP_DB_PATH must not be empty")
	}
	if c.StageBatchSize <= 0 {
		return fmt.Errorf("MEDIASNAP_STAGE_BATCH_SIZE must be positive, got %d", c.StageBatchSize)
	}
	if c.CollectPageSize <= 0 {
		return fmt.Errorf("MEDIASNAP_COLLECT_PAGE_SIZE must be positive, got %d", c.CollectPageSize)
	}
	if c.StaleAfterVersions < 1 {
		return fmt.Errorf("MEDIASNAP_STALE_AFTER_VERSIONS must be at least 1, got %d", c.StaleAfterVersions)
	}
	return nil
}
