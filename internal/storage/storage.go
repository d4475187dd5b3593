// Package storage defines the persistence contract for player identity and
// match records: the row shapes exchanged with the store, the operation set
// a checked-out connection exposes, and the error kinds callers branch on.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/slapstats/slapstats/internal/domain"
)

// ErrNotFound indicates a point lookup for an identifier that has never
// been stored. Callers use it to tell "no such player" apart from
// transport or data corruption failures.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateID indicates an insert violated a uniqueness constraint.
// For alias recording this is an expected outcome and the signal to switch
// to an update instead.
var ErrDuplicateID = errors.New("identifier already stored")

// ErrCheckoutTimeout indicates no pooled connection became available
// within the checkout bound. The pool never retries; retry policy belongs
// to the caller.
var ErrCheckoutTimeout = errors.New("connection checkout timed out")

// ErrPathNotFound indicates the configured database location does not
// exist. It is reported before any connection attempt so callers can tell
// a missing file apart from a corrupt or unreachable store.
var ErrPathNotFound = errors.New("database path not found")

// NewPlayerRow is the insertable shape for the players table. The
// surrogate key is assigned by the store.
type NewPlayerRow struct {
	SlapID domain.PlayerID
}

// PlayerRow is a stored player.
type PlayerRow struct {
	InternalID domain.InternalPlayerID
	SlapID     domain.PlayerID
}

// NewMatchRow is the insertable shape for the matches table.
type NewMatchRow struct {
	MatchID domain.MatchID
	Created time.Time
}

// MatchRow is a stored match.
type MatchRow struct {
	InternalID domain.InternalMatchID
	MatchID    domain.MatchID
	Created    time.Time
}

// NewNameRow is the insertable shape for the names table. LastUsed is
// assigned by the store operation.
type NewNameRow struct {
	PlayerID domain.InternalPlayerID
	Name     domain.Username
}

// NameRow is a stored alias observation.
type NameRow struct {
	PlayerID domain.InternalPlayerID
	Name     domain.Username
	LastUsed time.Time
}

// MatchPlayerRow links a match to one of its participants. The same shape
// serves insert and query.
type MatchPlayerRow struct {
	MatchID  domain.InternalMatchID
	PlayerID domain.InternalPlayerID
}

// PlayerNames pairs a player with every alias they have used. Names is
// empty, never nil, for players with no recorded aliases.
type PlayerNames struct {
	Player PlayerRow
	Names  []NameRow
}

// Conn is the operation set of a checked-out store connection. A Conn is
// exclusively owned by one goroutine between checkout and release.
type Conn interface {
	// AddPlayerID inserts a new player. A second insert for the same
	// platform id fails with ErrDuplicateID; the store's constraint
	// decides, there is no read-before-write.
	AddPlayerID(ctx context.Context, id domain.PlayerID) (PlayerRow, error)

	// GetPlayer looks a player up by platform id, returning ErrNotFound
	// when absent.
	GetPlayer(ctx context.Context, id domain.PlayerID) (PlayerRow, error)

	// AddOrUpdatePlayerName records an alias observation: a first
	// observation inserts the row, repeats advance last_used. The upsert
	// is a single statement and safe under concurrent observers.
	AddOrUpdatePlayerName(ctx context.Context, player PlayerRow, name domain.Username) (NameRow, error)

	// AddPlayer creates a player and records their first alias in one
	// transaction; a failure recording the alias rolls the player back.
	AddPlayer(ctx context.Context, player domain.Player) (NameRow, error)

	// GetPlayerNames returns every alias a player has used,
	// most recently used first.
	GetPlayerNames(ctx context.Context, player PlayerRow) ([]NameRow, error)

	// GetAllPlayerNames returns every player with all of their aliases,
	// including players that have none.
	GetAllPlayerNames(ctx context.Context) ([]PlayerNames, error)

	// AddMatch inserts a match record, failing with ErrDuplicateID when
	// the platform match id is already stored.
	AddMatch(ctx context.Context, row NewMatchRow) (MatchRow, error)

	// GetMatch looks a match up by platform id, returning ErrNotFound
	// when absent.
	GetMatch(ctx context.Context, id domain.MatchID) (MatchRow, error)

	// AddMatchPlayer links a participant to a match. Linking the same
	// player twice fails with ErrDuplicateID.
	AddMatchPlayer(ctx context.Context, row MatchPlayerRow) error

	// CreateTables materializes the schema. It is idempotent and safe to
	// invoke on every process start.
	CreateTables(ctx context.Context) error
}
