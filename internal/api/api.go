// Package api will expose the ingestion and query endpoints of the stats
// service. No transport is wired yet; the service holds the storage pool
// it will serve from and waits for shutdown.
package api

import (
	"context"

	"github.com/slapstats/slapstats/internal/storage/sqlite"
)

// Service is the network-facing surface of the stats server.
type Service struct {
	pool *sqlite.Pool
}

// New builds the service around a storage pool.
func New(pool *sqlite.Pool) *Service {
	return &Service{pool: pool}
}

// Run blocks until the context is canceled.
//
// TODO: serve the telemetry ingestion endpoint once the payload contract
// in internal/domain is frozen.
func (s *Service) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
