package models

import "time"

// NotificationEnvelope is built once per created match and handed to the push gateway.
// It is never persisted.
type NotificationEnvelope struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// PushToken is an actor's registered delivery endpoint
type PushToken struct {
	ActorID   string    `dynamodbav:"actorId" json:"actorId"`
	Token     string    `dynamodbav:"token" json:"token"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}
