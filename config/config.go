/*
config.go - Application configuration

PURPOSE:
  Declares the server configuration and loads it from environment
  variables with sensible defaults. Flags in cmd/server/main.go can
  override individual values after loading.

LEDGER KEY:
  LEDGER_KEY is the hex-encoded 256-bit key for financial field
  encryption. When empty the server generates an ephemeral key and
  logs a warning; encrypted values then do not survive a restart,
  which is acceptable only for development.
*/
package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root server configuration, loaded from the environment.
type Config struct {
	Host            string        `env:"HOST"             env-default:"0.0.0.0"`
	Port            int           `env:"PORT"             env-default:"8080"`
	DBPath          string        `env:"DB_PATH"          env-default:"ledger.db"`
	LedgerKey       string        `env:"LEDGER_KEY"       env-default:""`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"  env-default:"http://localhost:5173,http://localhost:8080"`
	Timezone        string        `env:"TIMEZONE"         env-default:"UTC"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    env-default:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits the comma-separated ALLOWED_ORIGINS value.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
