package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/store"

	"github.com/google/uuid"
)

// Outcome is the result of running match detection for one preference event
type Outcome int

// Detection outcomes. Only MatchCreated owns downstream effects.
const (
	NoMatchPossible Outcome = iota
	MatchAlreadyExists
	MatchCreated
	MatchLostRace
)

func (o Outcome) String() string {
	switch o {
	case NoMatchPossible:
		return "no_match_possible"
	case MatchAlreadyExists:
		return "match_already_exists"
	case MatchCreated:
		return "match_created"
	case MatchLostRace:
		return "match_lost_race"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText renders the outcome in its snake_case form
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the snake_case form
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, c := range []Outcome{NoMatchPossible, MatchAlreadyExists, MatchCreated, MatchLostRace} {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Detection is what the detector decided for one event. Match is set for
// every outcome except NoMatchPossible. Recipient is the partner of the
// completing actor and is only set on MatchCreated.
type Detection struct {
	Outcome   Outcome
	Match     *models.MatchRecord
	Recipient string
}

// MatchService detects matches and serves the match list
type MatchService struct {
	Groups  store.Groups
	Ledger  store.Ledger
	Matches store.Matches
	Log     *logger.Logger
	Now     func() time.Time
}

// NewMatchService wires a detector over the given stores
func NewMatchService(groups store.Groups, ledger store.Ledger, matches store.Matches, log *logger.Logger) *MatchService {
	if log == nil {
		log = logger.Nop()
	}
	return &MatchService{
		Groups:  groups,
		Ledger:  ledger,
		Matches: matches,
		Log:     log,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// OnPreferenceRecorded decides whether event completes a match. Creation
// goes through the store's insert-if-absent so that of two concurrent
// completions exactly one reports MatchCreated; which of the two partners
// is notified then depends on who won. Store faults come back
// wrapped in models.ErrStorageUnavailable; running the same event again is
// safe.
func (s *MatchService) OnPreferenceRecorded(ctx context.Context, event models.PreferenceEvent) (Detection, error) {
	log := s.Log.With().
		Str("event_id", event.EventID).
		Str("group_id", event.GroupID).
		Str("item_id", event.ItemID).
		Logger()

	if event.Direction != models.DirectionLike {
		return Detection{Outcome: NoMatchPossible}, nil
	}

	g, err := s.Groups.GetGroup(ctx, event.GroupID)
	if err != nil {
		return Detection{}, fmt.Errorf("load group: %w", err)
	}
	if !g.Complete() {
		log.Debug().Err(models.ErrIncompleteGroup).Msg("no match possible")
		return Detection{Outcome: NoMatchPossible}, nil
	}
	partner, ok := g.Partner(event.ActorID)
	if !ok {
		return Detection{}, fmt.Errorf("detect match for %s: %w", event.ActorID, models.ErrNotGroupMember)
	}

	theirs, err := s.Ledger.GetPreference(ctx, models.PreferenceKey{ActorID: partner, ItemID: event.ItemID, GroupID: event.GroupID})
	switch {
	case errors.Is(err, models.ErrPreferenceNotFound):
		return Detection{Outcome: NoMatchPossible}, nil
	case err != nil:
		return Detection{}, fmt.Errorf("load partner preference: %w", err)
	case theirs.Direction != models.DirectionLike:
		return Detection{Outcome: NoMatchPossible}, nil
	}

	candidate := models.MatchRecord{
		MatchID:        uuid.NewString(),
		GroupID:        event.GroupID,
		ItemID:         event.ItemID,
		MatchedAt:      s.Now(),
		TriggerEventID: event.EventID,
	}
	stored, inserted, err := s.Matches.InsertMatchIfAbsent(ctx, candidate)
	if err != nil {
		return Detection{}, fmt.Errorf("create match: %w", err)
	}

	det := Detection{Match: &stored}
	switch {
	case inserted:
		det.Outcome = MatchCreated
		det.Recipient = partner
	case stored.TriggerEventID == event.EventID:
		det.Outcome = MatchAlreadyExists
	default:
		det.Outcome = MatchLostRace
	}
	log.Info().Str("match_id", stored.MatchID).Stringer("outcome", det.Outcome).Msg("match detection finished")
	return det, nil
}

// ListMatches returns the authoritative match list for groupID
func (s *MatchService) ListMatches(ctx context.Context, groupID string) ([]models.MatchRecord, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: groupId is required", models.ErrInvalidRequest)
	}
	if _, err := s.Groups.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.Matches.ListMatches(ctx, groupID)
}

// SetFavorite flips the only mutable field of a match
func (s *MatchService) SetFavorite(ctx context.Context, matchID string, favorite bool) (models.MatchRecord, error) {
	if matchID == "" {
		return models.MatchRecord{}, fmt.Errorf("%w: matchId is required", models.ErrInvalidRequest)
	}
	rec, err := s.Matches.SetFavorite(ctx, matchID, favorite)
	if err != nil {
		return models.MatchRecord{}, err
	}
	s.Log.Debug().Str("match_id", matchID).Bool("favorite", favorite).Msg("favorite updated")
	return rec, nil
}
