package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
	"github.com/kbcarlson3/meal-match/store"
)

// MatchTitle is the title of every match notification
const MatchTitle = "It's a match!"

// Gateway delivers one envelope to one device token
type Gateway interface {
	Send(ctx context.Context, token string, env models.NotificationEnvelope) error
}

// NotificationService owns push tokens and the best-effort match push
type NotificationService struct {
	Endpoints store.Endpoints
	Gateway   Gateway // nil disables delivery
	Timeout   time.Duration
	Log       *logger.Logger
	Now       func() time.Time
}

// NewNotificationService wires a dispatcher. A nil gateway turns Dispatch
// into a logged no-op.
func NewNotificationService(endpoints store.Endpoints, gw Gateway, timeout time.Duration, log *logger.Logger) *NotificationService {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationService{
		Endpoints: endpoints,
		Gateway:   gw,
		Timeout:   timeout,
		Log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterPushToken stores the delivery endpoint for actorID, replacing any
// previous one
func (s *NotificationService) RegisterPushToken(ctx context.Context, actorID, token string) (models.PushToken, error) {
	if actorID == "" || token == "" {
		return models.PushToken{}, fmt.Errorf("%w: actorId and token are required", models.ErrInvalidRequest)
	}
	t := models.PushToken{ActorID: actorID, Token: token, UpdatedAt: s.Now()}
	if err := s.Endpoints.PutPushToken(ctx, t); err != nil {
		return models.PushToken{}, err
	}
	return t, nil
}

// Envelope builds the push for a created match
func Envelope(token string, m models.MatchRecord) models.NotificationEnvelope {
	return models.NotificationEnvelope{
		To:    token,
		Title: MatchTitle,
		Body:  fmt.Sprintf("You both liked %s. Add it to this week's plan!", m.ItemID),
		Data: map[string]string{
			"type":    "match",
			"matchId": m.MatchID,
			"groupId": m.GroupID,
			"itemId":  m.ItemID,
		},
		Sound: "default",
	}
}

// Dispatch sends one envelope to the detection's recipient. It is a no-op
// for anything but MatchCreated and when the recipient has no token. The
// returned error is informational: it is already logged and is never
// retried.
func (s *NotificationService) Dispatch(ctx context.Context, det Detection) error {
	if det.Outcome != MatchCreated || det.Match == nil || det.Recipient == "" {
		return nil
	}
	log := s.Log.With().
		Str("match_id", det.Match.MatchID).
		Str("recipient", det.Recipient).
		Logger()

	tok, err := s.Endpoints.GetPushToken(ctx, det.Recipient)
	if errors.Is(err, models.ErrNoEndpoint) {
		log.Debug().Msg("recipient has no push endpoint")
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("push endpoint lookup failed")
		return fmt.Errorf("%w: %w", models.ErrNotificationDelivery, err)
	}
	if s.Gateway == nil {
		log.Debug().Msg("push delivery disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Gateway.Send(ctx, tok.Token, Envelope(tok.Token, *det.Match)); err != nil {
		log.Warn().Err(err).Msg("match notification dropped")
		return fmt.Errorf("%w: %w", models.ErrNotificationDelivery, err)
	}
	log.Info().Msg("match notification sent")
	return nil
}
