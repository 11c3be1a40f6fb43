// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"slowcoup/internal/models"
)

// Config holds every tunable the server reads at startup. Phase windows
// are operator-overridable mainly so tests and staging can run games at
// a fast clock.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	ActionWindow    time.Duration `env:"ACTION_WINDOW" envDefault:"50m"`
	ReactionWindow  time.Duration `env:"REACTION_WINDOW" envDefault:"20m"`
	ChoicesWindow   time.Duration `env:"CHOICES_WINDOW" envDefault:"10m"`
	BroadcastWindow time.Duration `env:"BROADCAST_WINDOW" envDefault:"1m"`
	EndingWindow    time.Duration `env:"ENDING_WINDOW" envDefault:"5m"`

	// DigestInterval paces the recurring per-session broadcast job.
	DigestInterval time.Duration `env:"DIGEST_INTERVAL" envDefault:"5m"`

	// TurnLimit ends a session in ENDING once turn_number passes it.
	// 0 means unlimited.
	TurnLimit uint32 `env:"TURN_LIMIT" envDefault:"10"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Durations maps the configured windows onto a session's phase table.
func (c *Config) Durations() models.PhaseDurations {
	return models.PhaseDurations{
		Action:    c.ActionWindow,
		Reaction:  c.ReactionWindow,
		Choices:   c.ChoicesWindow,
		Broadcast: c.BroadcastWindow,
		Ending:    c.EndingWindow,
	}
}
