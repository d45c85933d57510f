package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract against one backend
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("groups", func(t *testing.T) { testGroups(t, open(t)) })
	t.Run("ledger uniqueness", func(t *testing.T) { testLedger(t, open(t)) })
	t.Run("insert match if absent", func(t *testing.T) { testInsertMatch(t, open(t)) })
	t.Run("concurrent insert has one winner", func(t *testing.T) { testConcurrentInsert(t, open(t)) })
	t.Run("favorite toggle", func(t *testing.T) { testFavorite(t, open(t)) })
	t.Run("push tokens", func(t *testing.T) { testPushTokens(t, open(t)) })
}

func seedGroup(t *testing.T, s Store, first, second string) models.Group {
	t.Helper()
	ctx := context.Background()
	g, err := s.CreateGroup(ctx, models.Group{GroupID: "g-" + first, First: first, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	if second != "" {
		g, err = s.JoinGroup(ctx, g.GroupID, second)
		require.NoError(t, err)
	}
	return g
}

func newEvent(actor, item, group string, dir models.Direction) models.PreferenceEvent {
	return models.PreferenceEvent{
		EventID:   uuid.NewString(),
		ActorID:   actor,
		ItemID:    item,
		GroupID:   group,
		Direction: dir,
		CreatedAt: time.Now().UTC(),
	}
}

func newMatch(group, item, trigger string) models.MatchRecord {
	return models.MatchRecord{
		MatchID:        uuid.NewString(),
		GroupID:        group,
		ItemID:         item,
		MatchedAt:      time.Now().UTC(),
		TriggerEventID: trigger,
	}
}

func testGroups(t *testing.T, s Store) {
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, models.Group{GroupID: "g1", First: "alice", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, g.Complete())

	_, err = s.CreateGroup(ctx, models.Group{GroupID: "g1", First: "carol", CreatedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, models.ErrGroupExists)

	_, err = s.JoinGroup(ctx, "missing", "bob")
	assert.ErrorIs(t, err, models.ErrGroupNotFound)

	_, err = s.JoinGroup(ctx, "g1", "alice")
	assert.ErrorIs(t, err, models.ErrActorInGroup)

	g, err = s.JoinGroup(ctx, "g1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", g.First)
	assert.Equal(t, "bob", g.Second)
	assert.True(t, g.Complete())

	_, err = s.JoinGroup(ctx, "g1", "carol")
	assert.ErrorIs(t, err, models.ErrGroupComplete)

	got, err := s.GroupForActor(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GroupID)

	_, err = s.GroupForActor(ctx, "carol")
	assert.ErrorIs(t, err, models.ErrGroupNotFound)
}

func testLedger(t *testing.T, s Store) {
	ctx := context.Background()
	g := seedGroup(t, s, "alice", "bob")

	first := newEvent("alice", "R1", g.GroupID, models.DirectionLike)
	require.NoError(t, s.InsertPreference(ctx, first))

	again := newEvent("alice", "R1", g.GroupID, models.DirectionDislike)
	assert.ErrorIs(t, s.InsertPreference(ctx, again), models.ErrDuplicatePreference)

	stored, err := s.GetPreference(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, first.EventID, stored.EventID)
	assert.Equal(t, models.DirectionLike, stored.Direction, "duplicate must not overwrite")

	require.NoError(t, s.InsertPreference(ctx, newEvent("bob", "R1", g.GroupID, models.DirectionDislike)))
	require.NoError(t, s.InsertPreference(ctx, newEvent("alice", "R2", g.GroupID, models.DirectionDislike)))

	list, err := s.ListPreferences(ctx, g.GroupID, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.GetPreference(ctx, models.PreferenceKey{ActorID: "bob", ItemID: "R9", GroupID: g.GroupID})
	assert.ErrorIs(t, err, models.ErrPreferenceNotFound)
}

func testInsertMatch(t *testing.T, s Store) {
	ctx := context.Background()
	g := seedGroup(t, s, "alice", "bob")

	m := newMatch(g.GroupID, "R1", "ev-1")
	stored, inserted, err := s.InsertMatchIfAbsent(ctx, m)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, m.MatchID, stored.MatchID)

	other := newMatch(g.GroupID, "R1", "ev-2")
	stored, inserted, err = s.InsertMatchIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, m.MatchID, stored.MatchID, "loser sees the winner's row")
	assert.Equal(t, "ev-1", stored.TriggerEventID)

	list, err := s.ListMatches(ctx, g.GroupID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "R1", list[0].ItemID)
	assert.False(t, list[0].IsFavorite)
}

func testConcurrentInsert(t *testing.T, s Store) {
	ctx := context.Background()
	g := seedGroup(t, s, "alice", "bob")

	const workers = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
		errs = make(chan error, workers)
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, inserted, err := s.InsertMatchIfAbsent(ctx, newMatch(g.GroupID, "R2", fmt.Sprintf("ev-%d", i)))
			if err != nil {
				errs <- err
				return
			}
			if inserted {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), wins.Load())

	list, err := s.ListMatches(ctx, g.GroupID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testFavorite(t *testing.T, s Store) {
	ctx := context.Background()
	g := seedGroup(t, s, "alice", "bob")

	m, _, err := s.InsertMatchIfAbsent(ctx, newMatch(g.GroupID, "R1", "ev-1"))
	require.NoError(t, err)

	updated, err := s.SetFavorite(ctx, m.MatchID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsFavorite)

	updated, err = s.SetFavorite(ctx, m.MatchID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsFavorite)

	_, err = s.SetFavorite(ctx, "no-such-match", true)
	assert.ErrorIs(t, err, models.ErrMatchNotFound)

	list, err := s.ListMatches(ctx, g.GroupID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "favorite toggles never add or remove matches")

	got, err := s.GetMatch(ctx, m.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "R1", got.ItemID)
}

func testPushTokens(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetPushToken(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNoEndpoint)

	require.NoError(t, s.PutPushToken(ctx, models.PushToken{ActorID: "alice", Token: "tok-1", UpdatedAt: time.Now().UTC()}))
	require.NoError(t, s.PutPushToken(ctx, models.PushToken{ActorID: "alice", Token: "tok-2", UpdatedAt: time.Now().UTC()}))

	tok, err := s.GetPushToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Token)
}
