// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full server configuration. Every field has a production
// default; only the secrets genuinely need setting.
type Config struct {
	Port     int    `env:"PORT" env-default:"8080"`
	DBPath   string `env:"DB_PATH" env-default:"aldea.db"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	JWTSecret     string `env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	WebhookSecret string `env:"PAY_WEBHOOK_SECRET"`
	PayHMACKey    string `env:"PAY_HMAC_KEY" env-default:"dev-hmac-change-me"`

	WorldSeed  int64 `env:"WORLD_SEED" env-default:"0"`
	AgentCount int   `env:"AGENT_COUNT" env-default:"8"`

	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" env-default:"150ms"`
	AgentTick        time.Duration `env:"AGENT_TICK" env-default:"120ms"`
	RentInterval     time.Duration `env:"RENT_INTERVAL" env-default:"10m"`
	SalaryInterval   time.Duration `env:"SALARY_INTERVAL" env-default:"2m"`
	ExploreReset     time.Duration `env:"EXPLORE_RESET" env-default:"15m"`

	RentAmount   int `env:"RENT_AMOUNT" env-default:"50"`
	SalaryAmount int `env:"SALARY_AMOUNT" env-default:"25"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}
