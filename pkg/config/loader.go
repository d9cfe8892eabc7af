// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from the process environment using `env` struct tags.
// Unset variables fall back to their `envDefault`; a value that cannot be
// parsed into the field type is a hard error, never a silent default.
//
//	type Config struct {
//	    HTTPPort  int           `env:"HTTP_PORT" envDefault:"8080"`
//	    JWTSecret string        `env:"JWT_SECRET"`
//	    AccessTTL time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
