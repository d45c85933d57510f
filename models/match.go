package models

import "time"

// MatchRecord says both actors of a group liked the same item.
// At most one exists per (GroupID, ItemID); IsFavorite is the only mutable field.
type MatchRecord struct {
	MatchID        string    `dynamodbav:"matchId" json:"matchId"`
	GroupID        string    `dynamodbav:"groupId" json:"groupId"`
	ItemID         string    `dynamodbav:"itemId" json:"itemId"`
	IsFavorite     bool      `dynamodbav:"isFavorite" json:"isFavorite"`
	MatchedAt      time.Time `dynamodbav:"matchedAt" json:"matchedAt"`
	TriggerEventID string    `dynamodbav:"triggerEventId" json:"triggerEventId"` // preference event whose insert won
}

// MatchEvent is the realtime payload pushed to group subscribers
type MatchEvent struct {
	MatchID   string    `json:"matchId"`
	GroupID   string    `json:"groupId"`
	ItemID    string    `json:"itemId"`
	MatchedAt time.Time `json:"matchedAt"`
}

// Event converts a record into its realtime payload
func (m MatchRecord) Event() MatchEvent {
	return MatchEvent{MatchID: m.MatchID, GroupID: m.GroupID, ItemID: m.ItemID, MatchedAt: m.MatchedAt}
}
