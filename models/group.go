package models

import "time"

// Group pairs exactly two actors. Second is empty until the invite is redeemed.
type Group struct {
	GroupID   string    `dynamodbav:"groupId" json:"groupId"`
	First     string    `dynamodbav:"first" json:"first"`
	Second    string    `dynamodbav:"second,omitempty" json:"second,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// Complete reports whether both slots are filled
func (g Group) Complete() bool {
	return g.First != "" && g.Second != ""
}

// HasMember reports whether actorID occupies one of the two slots
func (g Group) HasMember(actorID string) bool {
	return actorID != "" && (g.First == actorID || g.Second == actorID)
}

// Partner returns the other slot. ok is false when actorID is not a member
// or the other slot is empty.
func (g Group) Partner(actorID string) (string, bool) {
	switch actorID {
	case "":
		return "", false
	case g.First:
		return g.Second, g.Second != ""
	case g.Second:
		return g.First, g.First != ""
	}
	return "", false
}
