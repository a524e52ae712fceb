// Package config loads process configuration from an optional .env file and
// the environment. Each component owns its section struct; this package only
// composes them under their key prefixes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/notifier"
	"github.com/Tyrowin/roomcast/internal/server"
)

// Config is the full process configuration.
type Config struct {
	Auth     auth.Context    `envPrefix:"AUTH_"`
	Server   server.Config   `envPrefix:"WS_"`
	Redis    notifier.Config `envPrefix:"REDIS_"`
	Log      Log             `envPrefix:"LOG_"`
	Shutdown time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load reads files (default ".env") into the environment without overriding
// variables already set, then parses the environment into a Config.
// Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
