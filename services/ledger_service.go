package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/store"

	"github.com/google/uuid"
)

// LedgerService records preference events. It never looks at the partner or
// triggers matching; that is MatchService's job.
type LedgerService struct {
	Groups store.Groups
	Ledger store.Ledger
	Log    *logger.Logger
	Now    func() time.Time
}

// NewLedgerService wires a ledger over st
func NewLedgerService(groups store.Groups, ledger store.Ledger, log *logger.Logger) *LedgerService {
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerService{Groups: groups, Ledger: ledger, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// Record validates and durably appends one preference event. A second call
// for the same (actor, item, group) fails with models.ErrDuplicatePreference
// and leaves the first event untouched.
func (s *LedgerService) Record(ctx context.Context, actorID, itemID, groupID string, dir models.Direction) (models.PreferenceEvent, error) {
	if actorID == "" || itemID == "" || groupID == "" {
		return models.PreferenceEvent{}, fmt.Errorf("%w: actorId, itemId and groupId are required", models.ErrInvalidRequest)
	}
	if !dir.Valid() {
		return models.PreferenceEvent{}, fmt.Errorf("%w: got %q", models.ErrInvalidDirection, dir)
	}

	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.PreferenceEvent{}, err
	}
	if !g.HasMember(actorID) {
		return models.PreferenceEvent{}, fmt.Errorf("record preference for %s in %s: %w", actorID, groupID, models.ErrNotGroupMember)
	}

	event := models.PreferenceEvent{
		EventID:   uuid.NewString(),
		ActorID:   actorID,
		ItemID:    itemID,
		GroupID:   groupID,
		Direction: dir,
		CreatedAt: s.Now(),
	}
	if err := s.Ledger.InsertPreference(ctx, event); err != nil {
		return models.PreferenceEvent{}, err
	}

	s.Log.Debug().
		Str("event_id", event.EventID).
		Str("actor_id", actorID).
		Str("item_id", itemID).
		Str("group_id", groupID).
		Str("direction", string(dir)).
		Msg("preference recorded")
	return event, nil
}

// Get returns the recorded event for one (actor, item, group) slot
func (s *LedgerService) Get(ctx context.Context, actorID, itemID, groupID string) (models.PreferenceEvent, error) {
	if actorID == "" || itemID == "" || groupID == "" {
		return models.PreferenceEvent{}, fmt.Errorf("%w: actorId, itemId and groupId are required", models.ErrInvalidRequest)
	}
	return s.Ledger.GetPreference(ctx, models.PreferenceKey{ActorID: actorID, ItemID: itemID, GroupID: groupID})
}

// List returns actorID's events in groupID in write order
func (s *LedgerService) List(ctx context.Context, groupID, actorID string) ([]models.PreferenceEvent, error) {
	if groupID == "" || actorID == "" {
		return nil, fmt.Errorf("%w: groupId and actorId are required", models.ErrInvalidRequest)
	}
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(actorID) {
		return nil, fmt.Errorf("list preferences for %s in %s: %w", actorID, groupID, models.ErrNotGroupMember)
	}
	return s.Ledger.ListPreferences(ctx, groupID, actorID)
}
