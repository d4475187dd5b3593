package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Player identifies a player as reported by the telemetry API. The pair is
// already validated upstream; the storage layer consumes it as-is.
type Player struct {
	Username   Username `json:"username"`
	GameUserID PlayerID `json:"game_user_id"`
}

// Mode is the game mode a match was played in.
type Mode string

// Game modes reported by the telemetry API.
const (
	ModeHockey    Mode = "hockey"
	ModePond      Mode = "pond"
	ModeDodgepuck Mode = "dodgepuck"
	ModeTag       Mode = "tag"
)

// UnmarshalJSON rejects modes outside the known set.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	switch Mode(value) {
	case ModeHockey, ModePond, ModeDodgepuck, ModeTag:
		*m = Mode(value)
		return nil
	}
	return fmt.Errorf("invalid game mode: %q", value)
}

// Team is one side of a match.
type Team string

// Match sides.
const (
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// UnmarshalJSON rejects teams other than home and away.
func (t *Team) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	switch Team(value) {
	case TeamHome, TeamAway:
		*t = Team(value)
		return nil
	}
	return fmt.Errorf("invalid team: %q", value)
}

// Score is the final goal count for each side.
type Score struct {
	Away uint8 `json:"away"`
	Home uint8 `json:"home"`
}

// ParticipantStats carries per-player match statistics. The telemetry API
// does not expose any fields here yet.
type ParticipantStats struct{}

// MatchParticipant records one player's appearance in a match. The player
// fields arrive inline alongside team and stats.
type MatchParticipant struct {
	Player
	Team  Team             `json:"team"`
	Stats ParticipantStats `json:"stats"`
}

// MatchStats is the result payload attached to a completed match.
type MatchStats struct {
	Winner  *Team
	Score   Score
	Players []MatchParticipant
}

// UnmarshalJSON decodes the winner field, where the API reports a tie or
// abandoned match as the literal string "none".
func (s *MatchStats) UnmarshalJSON(data []byte) error {
	var aux struct {
		Winner  string             `json:"winner"`
		Score   Score              `json:"score"`
		Players []MatchParticipant `json:"players"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch aux.Winner {
	case "none":
		s.Winner = nil
	case string(TeamHome), string(TeamAway):
		team := Team(aux.Winner)
		s.Winner = &team
	default:
		return fmt.Errorf("invalid team: %q", aux.Winner)
	}
	s.Score = aux.Score
	s.Players = aux.Players
	return nil
}

// Match is a completed game session as reported by the telemetry API.
// GameStats is nil when the platform has not published results yet.
type Match struct {
	ID        MatchID     `json:"id"`
	Created   time.Time   `json:"created"`
	Mode      Mode        `json:"gamemode"`
	GameStats *MatchStats `json:"game_stats"`
}

// RecentHistory is the per-player history payload: the player's identity
// inline, followed by their recent matches.
type RecentHistory struct {
	Player
	MatchHistory []Match `json:"match_history"`
}
