package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kbcarlson3/meal-match/models"
)

type matchKey struct{ groupID, itemID string }

// Memory is an in-process Store. Its mutex plays the part of the storage
// engine's unique indexes; it is used for local runs and tests.
type Memory struct {
	mu          sync.Mutex
	groups      map[string]models.Group
	members     map[string]string // actorID -> groupID
	preferences map[models.PreferenceKey]models.PreferenceEvent
	matches     map[matchKey]models.MatchRecord
	matchIDs    map[string]matchKey
	tokens      map[string]models.PushToken
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		groups:      map[string]models.Group{},
		members:     map[string]string{},
		preferences: map[models.PreferenceKey]models.PreferenceEvent{},
		matches:     map[matchKey]models.MatchRecord{},
		matchIDs:    map[string]matchKey{},
		tokens:      map[string]models.PushToken{},
	}
}

// CreateGroup implements Groups
func (m *Memory) CreateGroup(_ context.Context, g models.Group) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[g.GroupID]; ok {
		return models.Group{}, models.ErrGroupExists
	}
	if _, ok := m.members[g.First]; ok {
		return models.Group{}, models.ErrActorInGroup
	}
	g.Second = ""
	m.groups[g.GroupID] = g
	m.members[g.First] = g.GroupID
	return g, nil
}

// JoinGroup implements Groups
func (m *Memory) JoinGroup(_ context.Context, groupID, actorID string) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return models.Group{}, models.ErrGroupNotFound
	}
	if g.Complete() {
		return models.Group{}, models.ErrGroupComplete
	}
	if _, ok := m.members[actorID]; ok {
		return models.Group{}, models.ErrActorInGroup
	}
	g.Second = actorID
	m.groups[groupID] = g
	m.members[actorID] = groupID
	return g, nil
}

// GetGroup implements Groups
func (m *Memory) GetGroup(_ context.Context, groupID string) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return models.Group{}, models.ErrGroupNotFound
	}
	return g, nil
}

// GroupForActor implements Groups
func (m *Memory) GroupForActor(_ context.Context, actorID string) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	groupID, ok := m.members[actorID]
	if !ok {
		return models.Group{}, models.ErrGroupNotFound
	}
	return m.groups[groupID], nil
}

// InsertPreference implements Ledger
func (m *Memory) InsertPreference(_ context.Context, e models.PreferenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.preferences[e.Key()]; ok {
		return models.ErrDuplicatePreference
	}
	m.preferences[e.Key()] = e
	return nil
}

// GetPreference implements Ledger
func (m *Memory) GetPreference(_ context.Context, key models.PreferenceKey) (models.PreferenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.preferences[key]
	if !ok {
		return models.PreferenceEvent{}, models.ErrPreferenceNotFound
	}
	return e, nil
}

// ListPreferences implements Ledger
func (m *Memory) ListPreferences(_ context.Context, groupID, actorID string) ([]models.PreferenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.PreferenceEvent{}
	for k, e := range m.preferences {
		if k.GroupID == groupID && k.ActorID == actorID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// InsertMatchIfAbsent implements Matches
func (m *Memory) InsertMatchIfAbsent(_ context.Context, rec models.MatchRecord) (models.MatchRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := matchKey{rec.GroupID, rec.ItemID}
	if existing, ok := m.matches[k]; ok {
		return existing, false, nil
	}
	m.matches[k] = rec
	m.matchIDs[rec.MatchID] = k
	return rec, true, nil
}

// ListMatches implements Matches
func (m *Memory) ListMatches(_ context.Context, groupID string) ([]models.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.MatchRecord{}
	for k, rec := range m.matches {
		if k.groupID == groupID {
			out = append(out, rec)
		}
	}
	sortMatches(out)
	return out, nil
}

// GetMatch implements Matches
func (m *Memory) GetMatch(_ context.Context, matchID string) (models.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.matchIDs[matchID]
	if !ok {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	return m.matches[k], nil
}

// SetFavorite implements Matches
func (m *Memory) SetFavorite(_ context.Context, matchID string, favorite bool) (models.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.matchIDs[matchID]
	if !ok {
		return models.MatchRecord{}, models.ErrMatchNotFound
	}
	rec := m.matches[k]
	rec.IsFavorite = favorite
	m.matches[k] = rec
	return rec, nil
}

// PutPushToken implements Endpoints
func (m *Memory) PutPushToken(_ context.Context, t models.PushToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[t.ActorID] = t
	return nil
}

// GetPushToken implements Endpoints
func (m *Memory) GetPushToken(_ context.Context, actorID string) (models.PushToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[actorID]
	if !ok || t.Token == "" {
		return models.PushToken{}, models.ErrNoEndpoint
	}
	return t, nil
}

// Close implements Store
func (m *Memory) Close() error { return nil }

func sortMatches(xs []models.MatchRecord) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].MatchedAt.Equal(xs[j].MatchedAt) {
			return xs[i].ItemID < xs[j].ItemID
		}
		return xs[i].MatchedAt.Before(xs[j].MatchedAt)
	})
}
