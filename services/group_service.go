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

// GroupService fronts the group directory. Invite codes and accounts live
// elsewhere; this only fills the two slots.
type GroupService struct {
	Groups store.Groups
	Log    *logger.Logger
	Now    func() time.Time
}

// NewGroupService wires a GroupService over groups
func NewGroupService(groups store.Groups, log *logger.Logger) *GroupService {
	if log == nil {
		log = logger.Nop()
	}
	return &GroupService{Groups: groups, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// Create opens a group with firstActor in the first slot. An empty groupID
// gets a generated one.
func (s *GroupService) Create(ctx context.Context, groupID, firstActor string) (models.Group, error) {
	if firstActor == "" {
		return models.Group{}, fmt.Errorf("%w: actorId is required", models.ErrInvalidRequest)
	}
	if groupID == "" {
		groupID = uuid.NewString()
	}
	g, err := s.Groups.CreateGroup(ctx, models.Group{GroupID: groupID, First: firstActor, CreatedAt: s.Now()})
	if err != nil {
		return models.Group{}, err
	}
	s.Log.Info().Str("group_id", g.GroupID).Str("actor_id", firstActor).Msg("group created")
	return g, nil
}

// Join fills the second slot. It succeeds once per group.
func (s *GroupService) Join(ctx context.Context, groupID, actorID string) (models.Group, error) {
	if groupID == "" || actorID == "" {
		return models.Group{}, fmt.Errorf("%w: groupId and actorId are required", models.ErrInvalidRequest)
	}
	g, err := s.Groups.JoinGroup(ctx, groupID, actorID)
	if err != nil {
		return models.Group{}, err
	}
	s.Log.Info().Str("group_id", g.GroupID).Str("actor_id", actorID).Msg("group completed")
	return g, nil
}

// Get returns one group
func (s *GroupService) Get(ctx context.Context, groupID string) (models.Group, error) {
	return s.Groups.GetGroup(ctx, groupID)
}

// ForActor resolves the group actorID belongs to
func (s *GroupService) ForActor(ctx context.Context, actorID string) (models.Group, error) {
	if actorID == "" {
		return models.Group{}, fmt.Errorf("%w: actorId is required", models.ErrInvalidRequest)
	}
	return s.Groups.GroupForActor(ctx, actorID)
}
