// Package sqlite implements the storage contract over an embedded SQLite
// database, guarded by a bounded connection pool.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/slapstats/slapstats/internal/storage"
	_ "modernc.org/sqlite"
)

// MemoryPath is the marker callers pass instead of a filesystem path to
// open an in-memory database.
const MemoryPath = ":memory:"

const (
	// DefaultPoolSize bounds the number of concurrently open handles when
	// the caller does not choose one.
	DefaultPoolSize = 10

	// DefaultCheckoutTimeout bounds how long Checkout waits for a free
	// handle before giving up.
	DefaultCheckoutTimeout = 5 * time.Second
)

// Pool manages a bounded set of store handles. Handles are established
// lazily and handed out one at a time; a checked-out handle belongs to one
// goroutine until released.
type Pool struct {
	sqlDB           *sql.DB
	checkoutTimeout time.Duration
}

// Option configures pool behavior at open time.
type Option func(*Pool)

// WithCheckoutTimeout overrides the bound on waiting for a free handle.
func WithCheckoutTimeout(timeout time.Duration) Option {
	return func(p *Pool) {
		if timeout > 0 {
			p.checkoutTimeout = timeout
		}
	}
}

// Open validates the database location and opens a pool of up to maxSize
// handles over it.
//
// A missing location is reported as storage.ErrPathNotFound before any
// connection attempt, so callers can tell "no such database file" apart
// from a corrupt or unreachable store. The path may name a file that does
// not exist yet as long as its directory does; the store creates the file
// on first use.
func Open(path string, maxSize int, opts ...Option) (*Pool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if maxSize <= 0 {
		maxSize = DefaultPoolSize
	}

	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxSize)
	sqlDB.SetMaxIdleConns(maxSize)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	pool := &Pool{
		sqlDB:           sqlDB,
		checkoutTimeout: DefaultCheckoutTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(pool)
		}
	}
	return pool, nil
}

// Checkout hands out a free handle, blocking the calling goroutine until
// one is released or the checkout timeout elapses. An elapsed wait returns
// storage.ErrCheckoutTimeout; a caller that abandons the wait early gets
// its context error back and no reservation is leaked.
//
// Once a pool is open, checkout can only fail by timing out or caller
// cancellation. Any other failure means the pool invariant is broken and
// panics.
func (p *Pool) Checkout(ctx context.Context) (*Conn, error) {
	if p == nil || p.sqlDB == nil {
		return nil, fmt.Errorf("pool is not open")
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, p.checkoutTimeout)
	defer cancel()

	conn, err := p.sqlDB.Conn(checkoutCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, storage.ErrCheckoutTimeout
		}
		panic(fmt.Sprintf("storage pool checkout: %v", err))
	}
	return &Conn{conn: conn}, nil
}

// Close closes the pool and every idle handle. Close is nil-safe so
// callers can defer it in all startup paths.
func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// buildDSN turns the configured location into a driver DSN. The pragmas
// apply per connection, so every pooled handle gets foreign-key
// enforcement and a busy timeout.
func buildDSN(path string) (string, error) {
	if path == MemoryPath {
		// Shared cache keeps every pooled handle on one in-memory
		// database instead of a private database per connection.
		return "file::memory:?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	}

	cleanPath := filepath.Clean(path)
	if _, err := os.Stat(cleanPath); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat database path: %w", err)
		}
		if _, dirErr := os.Stat(filepath.Dir(cleanPath)); dirErr != nil {
			return "", fmt.Errorf("%w: %s", storage.ErrPathNotFound, path)
		}
	}
	return cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", nil
}
