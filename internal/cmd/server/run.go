package server

import (
	"context"
	"fmt"
	"log"

	"github.com/slapstats/slapstats/internal/api"
	entrypoint "github.com/slapstats/slapstats/internal/platform/cmd"
	"github.com/slapstats/slapstats/internal/storage/sqlite"
)

// Run opens the connection pool, materializes the schema, and serves until
// the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		pool, err := sqlite.Open(cfg.Database, cfg.PoolSize, sqlite.WithCheckoutTimeout(cfg.CheckoutTimeout))
		if err != nil {
			return fmt.Errorf("open connection pool: %w", err)
		}
		defer func() {
			if err := pool.Close(); err != nil {
				log.Printf("close pool: %v", err)
			}
		}()

		conn, err := pool.Checkout(ctx)
		if err != nil {
			return fmt.Errorf("checkout connection: %w", err)
		}
		if err := conn.CreateTables(ctx); err != nil {
			_ = conn.Release()
			return fmt.Errorf("create tables: %w", err)
		}
		if err := conn.Release(); err != nil {
			return fmt.Errorf("release connection: %w", err)
		}

		log.Printf("database ready at %s (pool size %d)", cfg.Database, cfg.PoolSize)
		return api.New(pool).Run(ctx)
	})
}
