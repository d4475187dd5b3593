package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slapstats/slapstats/internal/domain"
	"github.com/slapstats/slapstats/internal/storage"
)

// openTestConn opens an in-memory pool, creates the schema, and hands back
// one checked-out connection.
func openTestConn(t *testing.T) *Conn {
	t.Helper()
	pool := openMemoryPool(t, 2)
	conn := checkout(t, pool)
	if err := conn.CreateTables(context.Background()); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return conn
}

func TestCreateTablesIsIdempotent(t *testing.T) {
	conn := openTestConn(t)
	if err := conn.CreateTables(context.Background()); err != nil {
		t.Fatalf("second create tables: %v", err)
	}
}

func TestAddPlayerIDSucceedsExactlyOnce(t *testing.T) {
	conn := openTestConn(t)

	row, err := conn.AddPlayerID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("add player id: %v", err)
	}
	if row.InternalID != 1 {
		t.Fatalf("expected internal id 1, got %d", row.InternalID)
	}
	if row.SlapID != "12345" {
		t.Fatalf("expected slap id 12345, got %q", row.SlapID)
	}

	_, err = conn.AddPlayerID(context.Background(), "12345")
	if !errors.Is(err, storage.ErrDuplicateID) {
		t.Fatalf("expected duplicate condition, got %v", err)
	}
}

func TestAddPlayerIDValidation(t *testing.T) {
	conn := openTestConn(t)
	if _, err := conn.AddPlayerID(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty player id")
	}
}

func TestGetPlayerNotFound(t *testing.T) {
	conn := openTestConn(t)
	_, err := conn.GetPlayer(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not-found condition, got %v", err)
	}
}

func TestAddOrUpdatePlayerNameNeverDuplicates(t *testing.T) {
	conn := openTestConn(t)

	player, err := conn.AddPlayerID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("add player id: %v", err)
	}

	first, err := conn.AddOrUpdatePlayerName(context.Background(), player, "Foo")
	if err != nil {
		t.Fatalf("first alias observation: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	second, err := conn.AddOrUpdatePlayerName(context.Background(), player, "Foo")
	if err != nil {
		t.Fatalf("second alias observation: %v", err)
	}
	if second.LastUsed.Before(first.LastUsed) {
		t.Fatalf("expected last_used to advance: first %v, second %v", first.LastUsed, second.LastUsed)
	}

	names, err := conn.GetPlayerNames(context.Background(), player)
	if err != nil {
		t.Fatalf("get player names: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected exactly one alias row, got %d", len(names))
	}
	if names[0].Name != "Foo" {
		t.Fatalf("expected alias Foo, got %q", names[0].Name)
	}
}

func TestAddPlayerIsAtomic(t *testing.T) {
	conn := openTestConn(t)

	// An empty username fails the alias step after the player insert, so
	// the whole transaction must roll back.
	_, err := conn.AddPlayer(context.Background(), domain.Player{
		Username:   "",
		GameUserID: "12345",
	})
	if err == nil {
		t.Fatal("expected error for empty username")
	}

	_, err = conn.GetPlayer(context.Background(), "12345")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no player row after rollback, got %v", err)
	}
}

func TestAddPlayerStoresPlayerAndFirstAlias(t *testing.T) {
	conn := openTestConn(t)

	name, err := conn.AddPlayer(context.Background(), domain.Player{
		Username:   "Foo",
		GameUserID: "12345",
	})
	if err != nil {
		t.Fatalf("add player: %v", err)
	}
	if name.Name != "Foo" {
		t.Fatalf("expected alias Foo, got %q", name.Name)
	}

	player, err := conn.GetPlayer(context.Background(), "12345")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if player.InternalID != name.PlayerID {
		t.Fatalf("alias row references player %d, lookup found %d", name.PlayerID, player.InternalID)
	}
}

func TestGetPlayerNamesMostRecentFirst(t *testing.T) {
	conn := openTestConn(t)

	player, err := conn.AddPlayerID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("add player id: %v", err)
	}

	if _, err := conn.AddOrUpdatePlayerName(context.Background(), player, "Older"); err != nil {
		t.Fatalf("record first alias: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := conn.AddOrUpdatePlayerName(context.Background(), player, "Newer"); err != nil {
		t.Fatalf("record second alias: %v", err)
	}

	names, err := conn.GetPlayerNames(context.Background(), player)
	if err != nil {
		t.Fatalf("get player names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected two aliases, got %d", len(names))
	}
	if names[0].Name != "Newer" || names[1].Name != "Older" {
		t.Fatalf("expected most-recent-first ordering, got %q then %q", names[0].Name, names[1].Name)
	}
}

func TestGetAllPlayerNamesIncludesPlayersWithoutAliases(t *testing.T) {
	conn := openTestConn(t)

	withNames, err := conn.AddPlayerID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("add first player: %v", err)
	}
	if _, err := conn.AddOrUpdatePlayerName(context.Background(), withNames, "Foo"); err != nil {
		t.Fatalf("record alias: %v", err)
	}
	if _, err := conn.AddOrUpdatePlayerName(context.Background(), withNames, "Bar"); err != nil {
		t.Fatalf("record alias: %v", err)
	}

	bare, err := conn.AddPlayerID(context.Background(), "67890")
	if err != nil {
		t.Fatalf("add second player: %v", err)
	}

	grouped, err := conn.GetAllPlayerNames(context.Background())
	if err != nil {
		t.Fatalf("get all player names: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("expected one entry per player, got %d", len(grouped))
	}
	if grouped[0].Player.InternalID != withNames.InternalID {
		t.Fatalf("expected players ordered by surrogate key")
	}
	if len(grouped[0].Names) != 2 {
		t.Fatalf("expected two aliases for first player, got %d", len(grouped[0].Names))
	}
	if grouped[1].Player.InternalID != bare.InternalID {
		t.Fatalf("expected second player entry")
	}
	if grouped[1].Names == nil || len(grouped[1].Names) != 0 {
		t.Fatalf("expected empty alias list for player without names, got %#v", grouped[1].Names)
	}
}

func TestAddMatchDuplicateAndLookup(t *testing.T) {
	conn := openTestConn(t)

	created := time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)
	match, err := conn.AddMatch(context.Background(), storage.NewMatchRow{
		MatchID: "match-1",
		Created: created,
	})
	if err != nil {
		t.Fatalf("add match: %v", err)
	}
	if !match.Created.Equal(created) {
		t.Fatalf("expected created %v, got %v", created, match.Created)
	}

	_, err = conn.AddMatch(context.Background(), storage.NewMatchRow{
		MatchID: "match-1",
		Created: created,
	})
	if !errors.Is(err, storage.ErrDuplicateID) {
		t.Fatalf("expected duplicate condition, got %v", err)
	}

	found, err := conn.GetMatch(context.Background(), "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if found.InternalID != match.InternalID {
		t.Fatalf("expected internal id %d, got %d", match.InternalID, found.InternalID)
	}

	if _, err := conn.GetMatch(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not-found condition, got %v", err)
	}
}

func TestAddMatchPlayerConstraints(t *testing.T) {
	conn := openTestConn(t)

	player, err := conn.AddPlayerID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("add player: %v", err)
	}
	match, err := conn.AddMatch(context.Background(), storage.NewMatchRow{
		MatchID: "match-1",
		Created: time.Now(),
	})
	if err != nil {
		t.Fatalf("add match: %v", err)
	}

	link := storage.MatchPlayerRow{MatchID: match.InternalID, PlayerID: player.InternalID}
	if err := conn.AddMatchPlayer(context.Background(), link); err != nil {
		t.Fatalf("add match player: %v", err)
	}

	if err := conn.AddMatchPlayer(context.Background(), link); !errors.Is(err, storage.ErrDuplicateID) {
		t.Fatalf("expected duplicate condition for repeat participation, got %v", err)
	}

	err = conn.AddMatchPlayer(context.Background(), storage.MatchPlayerRow{
		MatchID:  match.InternalID,
		PlayerID: 999,
	})
	if err == nil {
		t.Fatal("expected error for unknown player")
	}
	if errors.Is(err, storage.ErrDuplicateID) {
		t.Fatalf("foreign-key failure must not masquerade as duplicate: %v", err)
	}
}

// TestPlayerLifecycleScenario walks the end-to-end flow: a two-handle
// in-memory pool, schema creation, first sighting, lookup, and a repeated
// alias observation that touches instead of duplicating.
func TestPlayerLifecycleScenario(t *testing.T) {
	pool := openMemoryPool(t, 2)
	conn := checkout(t, pool)
	ctx := context.Background()

	if err := conn.CreateTables(ctx); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	if _, err := conn.AddPlayer(ctx, domain.Player{Username: "Foo", GameUserID: "12345"}); err != nil {
		t.Fatalf("add player: %v", err)
	}

	player, err := conn.GetPlayer(ctx, "12345")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if player.InternalID != 1 || player.SlapID != "12345" {
		t.Fatalf("expected internal id 1 and slap id 12345, got %d and %q", player.InternalID, player.SlapID)
	}

	names, err := conn.GetPlayerNames(ctx, player)
	if err != nil {
		t.Fatalf("get player names: %v", err)
	}
	if len(names) != 1 || names[0].Name != "Foo" {
		t.Fatalf("expected single alias Foo, got %#v", names)
	}
	firstSeen := names[0].LastUsed

	time.Sleep(5 * time.Millisecond)

	touched, err := conn.AddOrUpdatePlayerName(ctx, player, "Foo")
	if err != nil {
		t.Fatalf("repeat alias observation: %v", err)
	}
	if touched.LastUsed.Before(firstSeen) {
		t.Fatalf("expected last_used to advance past %v, got %v", firstSeen, touched.LastUsed)
	}

	names, err = conn.GetPlayerNames(ctx, player)
	if err != nil {
		t.Fatalf("get player names after touch: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("expected alias history to stay at one row, got %d", len(names))
	}
}
