package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, f *fixture, actor, item string, dir models.Direction) models.PreferenceEvent {
	t.Helper()
	e, err := f.ledger.Record(context.Background(), actor, item, "G", dir)
	require.NoError(t, err)
	return e
}

func TestDetectorOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("dislike never matches", func(t *testing.T) {
		f := newFixture(t)
		record(t, f, "alice", "R1", models.DirectionLike)
		e := record(t, f, "bob", "R1", models.DirectionDislike)

		det, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, NoMatchPossible, det.Outcome)
		assert.Nil(t, det.Match)
	})

	t.Run("partner has not swiped", func(t *testing.T) {
		f := newFixture(t)
		e := record(t, f, "alice", "R1", models.DirectionLike)

		det, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, NoMatchPossible, det.Outcome)
	})

	t.Run("partner disliked", func(t *testing.T) {
		f := newFixture(t)
		record(t, f, "alice", "R1", models.DirectionDislike)
		e := record(t, f, "bob", "R1", models.DirectionLike)

		det, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, NoMatchPossible, det.Outcome)
	})

	t.Run("created then already exists", func(t *testing.T) {
		f := newFixture(t)
		record(t, f, "alice", "R1", models.DirectionLike)
		e := record(t, f, "bob", "R1", models.DirectionLike)

		det, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, MatchCreated, det.Outcome)
		assert.Equal(t, "alice", det.Recipient)
		require.NotNil(t, det.Match)
		assert.Equal(t, e.EventID, det.Match.TriggerEventID)

		again, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, MatchAlreadyExists, again.Outcome)
		assert.Empty(t, again.Recipient)
		assert.Equal(t, det.Match.MatchID, again.Match.MatchID)
	})

	t.Run("partner event loses race", func(t *testing.T) {
		f := newFixture(t)
		a := record(t, f, "alice", "R1", models.DirectionLike)
		b := record(t, f, "bob", "R1", models.DirectionLike)

		won, err := f.matches.OnPreferenceRecorded(ctx, b)
		require.NoError(t, err)
		require.Equal(t, MatchCreated, won.Outcome)

		lost, err := f.matches.OnPreferenceRecorded(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, MatchLostRace, lost.Outcome)
		assert.Empty(t, lost.Recipient)
		assert.Equal(t, won.Match.MatchID, lost.Match.MatchID)
	})

	t.Run("incomplete group", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.groups.Create(ctx, "solo", "carol")
		require.NoError(t, err)
		e, err := f.ledger.Record(ctx, "carol", "R1", "solo", models.DirectionLike)
		require.NoError(t, err)

		det, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, NoMatchPossible, det.Outcome)
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.matches.OnPreferenceRecorded(ctx, models.PreferenceEvent{
			EventID: uuid.NewString(), ActorID: "alice", ItemID: "R1", GroupID: "missing",
			Direction: models.DirectionLike, CreatedAt: time.Now(),
		})
		require.ErrorIs(t, err, models.ErrGroupNotFound)
	})

	t.Run("storage fault reading partner", func(t *testing.T) {
		f := newFixture(t)
		record(t, f, "alice", "R1", models.DirectionLike)
		e := record(t, f, "bob", "R1", models.DirectionLike)

		f.st.failGetPref.Store(true)
		_, err := f.matches.OnPreferenceRecorded(ctx, e)
		require.ErrorIs(t, err, models.ErrStorageUnavailable)

		matches, err := f.matches.ListMatches(ctx, "G")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestSetFavoriteUnknownMatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.matches.SetFavorite(context.Background(), "nope", true)
	require.ErrorIs(t, err, models.ErrMatchNotFound)

	_, err = f.matches.SetFavorite(context.Background(), "", true)
	require.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestListMatchesUnknownGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.matches.ListMatches(context.Background(), "missing")
	require.ErrorIs(t, err, models.ErrGroupNotFound)
}

func TestOutcomeText(t *testing.T) {
	b, err := json.Marshal(SubmitResult{Outcome: MatchLostRace})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"outcome":"match_lost_race"`)

	var o Outcome
	require.NoError(t, o.UnmarshalText([]byte("match_created")))
	assert.Equal(t, MatchCreated, o)
	assert.Error(t, o.UnmarshalText([]byte("bogus")))
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
