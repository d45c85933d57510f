package models

// Direction is the stance an actor takes on an item
type Direction string

// Preference directions
const (
	DirectionLike    Direction = "like"
	DirectionDislike Direction = "dislike"
)

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	return d == DirectionLike || d == DirectionDislike
}

// Table names shared by the DynamoDB and SQL stores
const (
	GroupsTable      = "Groups"
	PreferencesTable = "Preferences"
	MatchesTable     = "Matches"
	PushTokensTable  = "PushTokens"
)

// GSI names used by the DynamoDB store
const (
	ActorGroupIndex = "actorId-index" // PK: actorId on Groups membership rows
	MatchIDIndex    = "matchId-index" // PK: matchId on Matches
)
