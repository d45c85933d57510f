package models

import "time"

// PreferenceEvent is one actor's immutable stance on one item within one group.
// At most one exists per (ActorID, ItemID, GroupID).
type PreferenceEvent struct {
	EventID   string    `dynamodbav:"eventId" json:"eventId"`
	ActorID   string    `dynamodbav:"actorId" json:"actorId"`
	ItemID    string    `dynamodbav:"itemId" json:"itemId"`
	GroupID   string    `dynamodbav:"groupId" json:"groupId"`
	Direction Direction `dynamodbav:"direction" json:"direction"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// PreferenceKey identifies the uniqueness slot of a PreferenceEvent
type PreferenceKey struct {
	ActorID string
	ItemID  string
	GroupID string
}

// Key returns the uniqueness slot of e
func (e PreferenceEvent) Key() PreferenceKey {
	return PreferenceKey{ActorID: e.ActorID, ItemID: e.ItemID, GroupID: e.GroupID}
}
