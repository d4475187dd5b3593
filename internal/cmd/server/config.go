// Package server parses stats server configuration and runs the storage
// runtime.
package server

import (
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/slapstats/slapstats/internal/platform/cmd"
	"github.com/slapstats/slapstats/internal/platform/config"
)

// Config holds server command configuration.
type Config struct {
	Database        string        `env:"SLAPSTATS_DATABASE"`
	PoolSize        int           `env:"SLAPSTATS_POOL_SIZE" envDefault:"10"`
	CheckoutTimeout time.Duration `env:"SLAPSTATS_CHECKOUT_TIMEOUT" envDefault:"5s"`
}

// ParseConfig loads the optional .env file, environment defaults, and
// command-line flags, in that order of increasing precedence.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Database, "d", cfg.Database, "The database path, or :memory: (shorthand)")
	fs.StringVar(&cfg.Database, "database", cfg.Database, "The database path, or :memory:")
	fs.IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "The maximum number of open store handles")
	fs.DurationVar(&cfg.CheckoutTimeout, "checkout-timeout", cfg.CheckoutTimeout, "How long to wait for a free store handle")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Database == "" {
		return Config{}, fmt.Errorf("database path is required (set -d or SLAPSTATS_DATABASE)")
	}
	return cfg, nil
}
