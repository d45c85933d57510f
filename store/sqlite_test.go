package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kbcarlson3/meal-match/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, openTestSQLite)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	g := seedGroup(t, s, "alice", "bob")
	require.NoError(t, s.InsertPreference(ctx, newEvent("alice", "R1", g.GroupID, models.DirectionLike)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	err = s.InsertPreference(ctx, newEvent("alice", "R1", g.GroupID, models.DirectionLike))
	assert.ErrorIs(t, err, models.ErrDuplicatePreference)
}

func TestSQLiteClosedIsUnavailable(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.InsertPreference(context.Background(), newEvent("alice", "R1", "g", models.DirectionLike))
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, models.ErrDuplicatePreference)
}
