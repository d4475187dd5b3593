package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slapstats/slapstats/internal/domain"
	"github.com/slapstats/slapstats/internal/platform/storage/sqlitemigrate"
	"github.com/slapstats/slapstats/internal/storage"
	"github.com/slapstats/slapstats/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Conn is one checked-out pool handle. It is the only type that issues
// queries, and it is exclusively owned by the holder until Release.
type Conn struct {
	conn *sql.Conn
}

// querier is the query surface shared by a raw handle and a transaction,
// so each operation runs unchanged inside or outside AddPlayer's
// transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Release returns the handle to the pool, unblocking one waiter. It is
// nil-safe and idempotent so callers can defer it on every exit path.
func (c *Conn) Release() error {
	if c == nil || c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}

func (c *Conn) handle() (*sql.Conn, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("connection is released")
	}
	return c.conn, nil
}

// AddPlayerID inserts a new player row for a platform id. The store's
// uniqueness constraint decides duplicates; a second insert for the same
// id returns storage.ErrDuplicateID.
func (c *Conn) AddPlayerID(ctx context.Context, id domain.PlayerID) (storage.PlayerRow, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlayerRow{}, err
	}
	conn, err := c.handle()
	if err != nil {
		return storage.PlayerRow{}, err
	}
	return addPlayerID(ctx, conn, id)
}

func addPlayerID(ctx context.Context, q querier, id domain.PlayerID) (storage.PlayerRow, error) {
	if strings.TrimSpace(id.String()) == "" {
		return storage.PlayerRow{}, fmt.Errorf("player id is required")
	}

	var row storage.PlayerRow
	err := q.QueryRowContext(ctx, `
INSERT INTO players (slap_id) VALUES (?)
RETURNING internal_id, slap_id
`, id.String()).Scan(&row.InternalID, &row.SlapID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.PlayerRow{}, storage.ErrDuplicateID
		}
		return storage.PlayerRow{}, fmt.Errorf("add player id: %w", err)
	}
	return row, nil
}

// GetPlayer looks a player up by platform id.
func (c *Conn) GetPlayer(ctx context.Context, id domain.PlayerID) (storage.PlayerRow, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlayerRow{}, err
	}
	conn, err := c.handle()
	if err != nil {
		return storage.PlayerRow{}, err
	}
	if strings.TrimSpace(id.String()) == "" {
		return storage.PlayerRow{}, fmt.Errorf("player id is required")
	}

	var row storage.PlayerRow
	err = conn.QueryRowContext(ctx, `
SELECT internal_id, slap_id FROM players WHERE slap_id = ?
`, id.String()).Scan(&row.InternalID, &row.SlapID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PlayerRow{}, storage.ErrNotFound
		}
		return storage.PlayerRow{}, fmt.Errorf("get player: %w", err)
	}
	return row, nil
}

// AddOrUpdatePlayerName records an alias observation. The first
// observation of (player, name) inserts a row; every repeat advances
// last_used instead. The upsert is one statement, so concurrent observers
// of the same alias race at the store, not in application logic.
func (c *Conn) AddOrUpdatePlayerName(ctx context.Context, player storage.PlayerRow, name domain.Username) (storage.NameRow, error) {
	if err := ctx.Err(); err != nil {
		return storage.NameRow{}, err
	}
	conn, err := c.handle()
	if err != nil {
		return storage.NameRow{}, err
	}
	return addOrUpdatePlayerName(ctx, conn, player, name)
}

func addOrUpdatePlayerName(ctx context.Context, q querier, player storage.PlayerRow, name domain.Username) (storage.NameRow, error) {
	if strings.TrimSpace(name.String()) == "" {
		return storage.NameRow{}, fmt.Errorf("username is required")
	}

	var (
		row      storage.NameRow
		lastUsed int64
	)
	err := q.QueryRowContext(ctx, `
INSERT INTO names (player_id, name, last_used) VALUES (?, ?, ?)
ON CONFLICT (player_id, name) DO UPDATE SET last_used = excluded.last_used
RETURNING player_id, name, last_used
`, int32(player.InternalID), name.String(), toMillis(time.Now())).Scan(&row.PlayerID, &row.Name, &lastUsed)
	if err != nil {
		return storage.NameRow{}, fmt.Errorf("add or update player name: %w", err)
	}
	row.LastUsed = fromMillis(lastUsed)
	return row, nil
}

// AddPlayer creates a player and records their first alias in one
// transaction. A failure recording the alias rolls the player row back, so
// no orphaned player can exist afterwards.
func (c *Conn) AddPlayer(ctx context.Context, player domain.Player) (storage.NameRow, error) {
	if err := ctx.Err(); err != nil {
		return storage.NameRow{}, err
	}
	conn, err := c.handle()
	if err != nil {
		return storage.NameRow{}, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return storage.NameRow{}, fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	playerRow, err := addPlayerID(ctx, tx, player.GameUserID)
	if err != nil {
		return storage.NameRow{}, err
	}
	nameRow, err := addOrUpdatePlayerName(ctx, tx, playerRow, player.Username)
	if err != nil {
		return storage.NameRow{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.NameRow{}, fmt.Errorf("commit player: %w", err)
	}
	return nameRow, nil
}

// GetPlayerNames returns every alias a player has used, most recently used
// first.
func (c *Conn) GetPlayerNames(ctx context.Context, player storage.PlayerRow) ([]storage.NameRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.handle()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
SELECT player_id, name, last_used FROM names
WHERE player_id = ?
ORDER BY last_used DESC, name
`, int32(player.InternalID))
	if err != nil {
		return nil, fmt.Errorf("get player names: %w", err)
	}
	defer rows.Close()

	names := []storage.NameRow{}
	for rows.Next() {
		var (
			row      storage.NameRow
			lastUsed int64
		)
		if err := rows.Scan(&row.PlayerID, &row.Name, &lastUsed); err != nil {
			return nil, fmt.Errorf("get player names: %w", err)
		}
		row.LastUsed = fromMillis(lastUsed)
		names = append(names, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get player names: %w", err)
	}
	return names, nil
}

// GetAllPlayerNames returns every player paired with all of their aliases.
// Players and names are fetched in two queries and grouped in memory by
// surrogate key, avoiding a row-multiplying join; players with no recorded
// aliases appear with an empty list. There is no pagination.
func (c *Conn) GetAllPlayerNames(ctx context.Context) ([]storage.PlayerNames, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.handle()
	if err != nil {
		return nil, err
	}

	playerRows, err := conn.QueryContext(ctx, `
SELECT internal_id, slap_id FROM players ORDER BY internal_id
`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer playerRows.Close()

	var grouped []storage.PlayerNames
	index := make(map[domain.InternalPlayerID]int)
	for playerRows.Next() {
		var player storage.PlayerRow
		if err := playerRows.Scan(&player.InternalID, &player.SlapID); err != nil {
			return nil, fmt.Errorf("list players: %w", err)
		}
		index[player.InternalID] = len(grouped)
		grouped = append(grouped, storage.PlayerNames{
			Player: player,
			Names:  []storage.NameRow{},
		})
	}
	if err := playerRows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	nameRows, err := conn.QueryContext(ctx, `
SELECT player_id, name, last_used FROM names ORDER BY last_used DESC, name
`)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer nameRows.Close()

	for nameRows.Next() {
		var (
			row      storage.NameRow
			lastUsed int64
		)
		if err := nameRows.Scan(&row.PlayerID, &row.Name, &lastUsed); err != nil {
			return nil, fmt.Errorf("list names: %w", err)
		}
		row.LastUsed = fromMillis(lastUsed)
		at, ok := index[row.PlayerID]
		if !ok {
			// A name without its player means the foreign key was not
			// enforced; surface it instead of dropping the row.
			return nil, fmt.Errorf("list names: name %q references unknown player %d", row.Name, row.PlayerID)
		}
		grouped[at].Names = append(grouped[at].Names, row)
	}
	if err := nameRows.Err(); err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	return grouped, nil
}

// AddMatch inserts a match record.
func (c *Conn) AddMatch(ctx context.Context, row storage.NewMatchRow) (storage.MatchRow, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchRow{}, err
	}
	conn, err := c.handle()
	if err != nil {
		return storage.MatchRow{}, err
	}
	if strings.TrimSpace(row.MatchID.String()) == "" {
		return storage.MatchRow{}, fmt.Errorf("match id is required")
	}

	var (
		stored  storage.MatchRow
		created int64
	)
	err = conn.QueryRowContext(ctx, `
INSERT INTO matches (match_id, created) VALUES (?, ?)
RETURNING internal_id, match_id, created
`, row.MatchID.String(), toMillis(row.Created)).Scan(&stored.InternalID, &stored.MatchID, &created)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.MatchRow{}, storage.ErrDuplicateID
		}
		return storage.MatchRow{}, fmt.Errorf("add match: %w", err)
	}
	stored.Created = fromMillis(created)
	return stored, nil
}

// GetMatch looks a match up by platform id.
func (c *Conn) GetMatch(ctx context.Context, id domain.MatchID) (storage.MatchRow, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchRow{}, err
	}
	conn, err := c.handle()
	if err != nil {
		return storage.MatchRow{}, err
	}
	if strings.TrimSpace(id.String()) == "" {
		return storage.MatchRow{}, fmt.Errorf("match id is required")
	}

	var (
		row     storage.MatchRow
		created int64
	)
	err = conn.QueryRowContext(ctx, `
SELECT internal_id, match_id, created FROM matches WHERE match_id = ?
`, id.String()).Scan(&row.InternalID, &row.MatchID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MatchRow{}, storage.ErrNotFound
		}
		return storage.MatchRow{}, fmt.Errorf("get match: %w", err)
	}
	row.Created = fromMillis(created)
	return row, nil
}

// AddMatchPlayer links a participant to a match. The composite primary key
// makes a repeat link fail with storage.ErrDuplicateID.
func (c *Conn) AddMatchPlayer(ctx context.Context, row storage.MatchPlayerRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.handle()
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx, `
INSERT INTO match_players (match_id, player_id) VALUES (?, ?)
`, int32(row.MatchID), int32(row.PlayerID))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateID
		}
		return fmt.Errorf("add match player: %w", err)
	}
	return nil
}

// CreateTables materializes the schema from the embedded migrations. It is
// idempotent and safe to run on every process start.
func (c *Conn) CreateTables(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.handle()
	if err != nil {
		return err
	}
	if err := sqlitemigrate.Apply(ctx, conn, migrations.FS, "."); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

var _ storage.Conn = (*Conn)(nil)
