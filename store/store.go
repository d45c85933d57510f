// Package store holds the durable backends for groups, the preference ledger,
// match records and push endpoints.
//
// Every backend enforces the two uniqueness invariants in the storage engine
// itself: one preference per (actor, item, group) and one match per
// (group, item). InsertMatchIfAbsent reports truthfully whether the calling
// insert created the row.
package store

import (
	"context"
	"fmt"

	"github.com/kbcarlson3/meal-match/models"
)

// Groups is the group directory. Group registration is owned elsewhere; the
// write methods exist so deployments and tests can seed it.
type Groups interface {
	CreateGroup(ctx context.Context, g models.Group) (models.Group, error)
	JoinGroup(ctx context.Context, groupID, actorID string) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	GroupForActor(ctx context.Context, actorID string) (models.Group, error)
}

// Ledger is the append-only preference ledger
type Ledger interface {
	// InsertPreference fails with models.ErrDuplicatePreference when the
	// (actor, item, group) slot is taken.
	InsertPreference(ctx context.Context, e models.PreferenceEvent) error
	GetPreference(ctx context.Context, key models.PreferenceKey) (models.PreferenceEvent, error)
	ListPreferences(ctx context.Context, groupID, actorID string) ([]models.PreferenceEvent, error)
}

// Matches stores match records
type Matches interface {
	// InsertMatchIfAbsent atomically inserts m unless a match for
	// (m.GroupID, m.ItemID) exists. It returns the stored row and whether
	// this call inserted it.
	InsertMatchIfAbsent(ctx context.Context, m models.MatchRecord) (models.MatchRecord, bool, error)
	ListMatches(ctx context.Context, groupID string) ([]models.MatchRecord, error)
	GetMatch(ctx context.Context, matchID string) (models.MatchRecord, error)
	SetFavorite(ctx context.Context, matchID string, favorite bool) (models.MatchRecord, error)
}

// Endpoints is the push token registry
type Endpoints interface {
	PutPushToken(ctx context.Context, t models.PushToken) error
	// GetPushToken fails with models.ErrNoEndpoint when none is registered
	GetPushToken(ctx context.Context, actorID string) (models.PushToken, error)
}

// Store is a complete backend
type Store interface {
	Groups
	Ledger
	Matches
	Endpoints
	Close() error
}

// unavailable tags a driver failure as a retryable storage fault
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorageUnavailable, err)
}
