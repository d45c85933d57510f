package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/store"

	"github.com/stretchr/testify/require"
)

type sentPush struct {
	token string
	env   models.NotificationEnvelope
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (g *recordingGateway) Send(_ context.Context, token string, env models.NotificationEnvelope) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentPush{token: token, env: env})
	return g.err
}

func (g *recordingGateway) all() []sentPush {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentPush(nil), g.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (p *recordingPublisher) Publish(_ string, evt models.MatchEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return 1
}

func (p *recordingPublisher) all() []models.MatchEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MatchEvent(nil), p.events...)
}

// faultyStore fails chosen operations with a storage fault
type faultyStore struct {
	*store.Memory
	failInsertMatch atomic.Bool
	failGetPref     atomic.Bool
	// insertThenFail stores the match but still reports a fault
	insertThenFail atomic.Bool
	// prefThenFail stores the preference but still reports a fault
	prefThenFail atomic.Bool
}

var errBackendDown = fmt.Errorf("backend down: %w", models.ErrStorageUnavailable)

func (f *faultyStore) InsertMatchIfAbsent(ctx context.Context, m models.MatchRecord) (models.MatchRecord, bool, error) {
	if f.failInsertMatch.Load() {
		return models.MatchRecord{}, false, errBackendDown
	}
	if f.insertThenFail.Load() {
		_, _, _ = f.Memory.InsertMatchIfAbsent(ctx, m)
		return models.MatchRecord{}, false, errBackendDown
	}
	return f.Memory.InsertMatchIfAbsent(ctx, m)
}

func (f *faultyStore) InsertPreference(ctx context.Context, e models.PreferenceEvent) error {
	if f.prefThenFail.Load() {
		if err := f.Memory.InsertPreference(ctx, e); err != nil {
			return err
		}
		return errBackendDown
	}
	return f.Memory.InsertPreference(ctx, e)
}

func (f *faultyStore) GetPreference(ctx context.Context, key models.PreferenceKey) (models.PreferenceEvent, error) {
	if f.failGetPref.Load() {
		return models.PreferenceEvent{}, errBackendDown
	}
	return f.Memory.GetPreference(ctx, key)
}

type fixture struct {
	st       *faultyStore
	groups   *GroupService
	ledger   *LedgerService
	matches  *MatchService
	notifier *NotificationService
	actions  *ActionService
	gateway  *recordingGateway
	pub      *recordingPublisher
	group    models.Group
}

// newFixture builds the pipeline over a memory store with a complete group
// {alice, bob}; both actors have push tokens.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := &faultyStore{Memory: store.NewMemory()}
	f := &fixture{st: st, gateway: &recordingGateway{}, pub: &recordingPublisher{}}

	f.groups = NewGroupService(st, nil)
	f.ledger = NewLedgerService(st, st, nil)
	f.matches = NewMatchService(st, st, st, nil)
	f.notifier = NewNotificationService(st, f.gateway, time.Second, nil)
	f.actions = NewActionService(f.ledger, f.matches, f.notifier, f.pub, nil)
	t.Cleanup(f.actions.Close)

	_, err := f.groups.Create(ctx, "G", "alice")
	require.NoError(t, err)
	f.group, err = f.groups.Join(ctx, "G", "bob")
	require.NoError(t, err)

	_, err = f.notifier.RegisterPushToken(ctx, "alice", "ExponentPushToken[alice]")
	require.NoError(t, err)
	_, err = f.notifier.RegisterPushToken(ctx, "bob", "ExponentPushToken[bob]")
	require.NoError(t, err)
	return f
}

func (f *fixture) matchesIn(t *testing.T, groupID string) []models.MatchRecord {
	t.Helper()
	matches, err := f.matches.ListMatches(context.Background(), groupID)
	require.NoError(t, err)
	return matches
}
