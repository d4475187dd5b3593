package domain

// PlayerID is the stable player identifier issued by the Slapshot platform.
// It is globally unique and immutable once assigned, and is the only player
// identity shared with external systems.
type PlayerID string

// String returns the raw platform identifier.
func (id PlayerID) String() string {
	return string(id)
}

// MatchID is the stable match identifier issued by the Slapshot platform.
type MatchID string

// String returns the raw platform identifier.
func (id MatchID) String() string {
	return string(id)
}

// Username is a display name a player has used in game. Usernames are not
// unique across players and change over time, which is why they are a
// distinct type from the external identifiers.
type Username string

// String returns the display name text.
func (u Username) String() string {
	return string(u)
}

// InternalPlayerID is the store-assigned surrogate key for a player row.
// It has no meaning outside the store and is never compared against
// platform identifiers.
type InternalPlayerID int32

// InternalMatchID is the store-assigned surrogate key for a match row.
type InternalMatchID int32
