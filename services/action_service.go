package services

import (
	"context"
	"sync"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
)

// Publisher fans a created match out to live subscribers
type Publisher interface {
	Publish(groupID string, evt models.MatchEvent) int
}

// SubmitResult is what a swipe returns to the submitting actor
type SubmitResult struct {
	Event   models.PreferenceEvent `json:"event"`
	Outcome Outcome                `json:"outcome"`
	Match   *models.MatchRecord    `json:"match,omitempty"`
}

// ActionService runs a swipe end to end: record, detect, and on the winning
// path publish and notify. Publish and notify run detached from the caller.
type ActionService struct {
	Ledger    *LedgerService
	Matches   *MatchService
	Notifier  *NotificationService
	Publisher Publisher
	Log       *logger.Logger

	// EffectsTimeout bounds one detached publish+dispatch
	EffectsTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewActionService wires the swipe pipeline
func NewActionService(ledger *LedgerService, matches *MatchService, notifier *NotificationService, pub Publisher, log *logger.Logger) *ActionService {
	if log == nil {
		log = logger.Nop()
	}
	timeout := 10 * time.Second
	if notifier != nil && notifier.Timeout > 0 {
		timeout = 2 * notifier.Timeout
	}
	return &ActionService{
		Ledger:         ledger,
		Matches:        matches,
		Notifier:       notifier,
		Publisher:      pub,
		Log:            log,
		EffectsTimeout: timeout,
	}
}

// Submit records one preference and runs detection on it.
//
// A duplicate fails with models.ErrDuplicatePreference before detection runs.
// A store fault during detection returns the recorded event together with
// an error wrapping models.ErrStorageUnavailable; the caller finishes the
// submission with Retry.
func (s *ActionService) Submit(ctx context.Context, actorID, itemID, groupID string, dir models.Direction) (SubmitResult, error) {
	event, err := s.Ledger.Record(ctx, actorID, itemID, groupID, dir)
	if err != nil {
		return SubmitResult{}, err
	}
	return s.detect(ctx, event)
}

// Retry reruns detection for an already recorded event. Repeating it is
// safe: a match the event already created comes back as MatchAlreadyExists
// and triggers nothing.
func (s *ActionService) Retry(ctx context.Context, actorID, itemID, groupID string) (SubmitResult, error) {
	event, err := s.Ledger.Get(ctx, actorID, itemID, groupID)
	if err != nil {
		return SubmitResult{}, err
	}
	return s.detect(ctx, event)
}

func (s *ActionService) detect(ctx context.Context, event models.PreferenceEvent) (SubmitResult, error) {
	res := SubmitResult{Event: event}

	det, err := s.Matches.OnPreferenceRecorded(ctx, event)
	if err != nil {
		s.Log.Error().Err(err).
			Str("event_id", event.EventID).
			Str("group_id", event.GroupID).
			Str("item_id", event.ItemID).
			Msg("match detection failed")
		return res, err
	}
	res.Outcome = det.Outcome
	res.Match = det.Match

	if det.Outcome == MatchCreated {
		s.fanout(ctx, det)
	}
	return res, nil
}

func (s *ActionService) fanout(parent context.Context, det Detection) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.Log.Warn().Str("match_id", det.Match.MatchID).Msg("shutting down, match effects skipped")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.EffectsTimeout)
		defer cancel()

		if s.Publisher != nil {
			n := s.Publisher.Publish(det.Match.GroupID, det.Match.Event())
			s.Log.Debug().Str("match_id", det.Match.MatchID).Int("subscribers", n).Msg("match published")
		}
		if s.Notifier != nil {
			_ = s.Notifier.Dispatch(ctx, det)
		}
	}()
}

// Wait blocks until every detached publish and dispatch has finished
func (s *ActionService) Wait() {
	s.wg.Wait()
}

// Close stops accepting new effects and drains the ones in flight
func (s *ActionService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
