// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	Addr string `env:"DUEL_ADDR" envDefault:":8192"`

	CatalogURL     string        `env:"CATALOG_URL" envDefault:"http://localhost:8191"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`

	// ScriptsFile points at the YAML card-script catalog; empty means no
	// scripted effects, which is fine for vanilla-only card pools.
	ScriptsFile string `env:"SCRIPTS_FILE"`

	ForfeitTimeout time.Duration `env:"FORFEIT_TIMEOUT" envDefault:"60s"`
	RoomTTL        time.Duration `env:"ROOM_TTL" envDefault:"1h"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	LogDev bool `env:"LOG_DEV" envDefault:"false"`
}

// Load reads .env if present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
