// config.go loads server configuration from environment variables.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all tunables. Everything has a working default so the server
// runs with no environment at all.
type Config struct {
	// Workers is the number of concurrent background lookups.
	Workers int `env:"PUBCHEM_WORKERS" envDefault:"4"`
	// StatusTTL is how long a finished (or stuck) request stays pollable.
	StatusTTL time.Duration `env:"PUBCHEM_STATUS_TTL" envDefault:"1h"`
	// CleanupInterval is how often expired requests are swept.
	CleanupInterval time.Duration `env:"PUBCHEM_CLEANUP_INTERVAL" envDefault:"5m"`

	// BaseURL points at the PUG REST API root. Overridable for tests.
	BaseURL string `env:"PUBCHEM_BASE_URL" envDefault:"https://pubchem.ncbi.nlm.nih.gov/rest/pug"`
	// HTTPTimeout applies to property and CID lookups.
	HTTPTimeout time.Duration `env:"PUBCHEM_HTTP_TIMEOUT" envDefault:"10s"`
	// SDFTimeout applies to 3D SDF downloads, which are much larger.
	SDFTimeout time.Duration `env:"PUBCHEM_SDF_TIMEOUT" envDefault:"60s"`

	// CacheDir holds generated XYZ structures. Defaults to ~/.pubchem-mcp/cache.
	CacheDir string `env:"PUBCHEM_CACHE_DIR"`

	// BatchDelay is the pause between rows in batch mode, to stay polite to
	// the upstream API.
	BatchDelay time.Duration `env:"PUBCHEM_BATCH_DELAY" envDefault:"500ms"`

	LogLevel  string `env:"PUBCHEM_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PUBCHEM_LOG_FORMAT" envDefault:"console"` // console or json
}

// LoadConfig parses the environment and applies guardrails.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

const maxWorkers = 64

// Sanitize clamps values that would make the server misbehave.
func (c *Config) Sanitize() {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.Workers > maxWorkers {
		c.Workers = maxWorkers
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.SDFTimeout <= 0 {
		c.SDFTimeout = 60 * time.Second
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.CacheDir = filepath.Join(home, ".pubchem-mcp", "cache")
	}
}
