package models

import "errors"

// Ledger and group errors
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDuplicatePreference = errors.New("preference already recorded")
	ErrPreferenceNotFound  = errors.New("preference not found")
	ErrInvalidDirection    = errors.New("direction must be like or dislike")
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupExists         = errors.New("group already exists")
	ErrGroupComplete       = errors.New("group already has two members")
	ErrActorInGroup        = errors.New("actor already belongs to a group")
	ErrNotGroupMember      = errors.New("actor is not a member of the group")
	ErrIncompleteGroup     = errors.New("group is incomplete")
)

// Match errors
var (
	ErrMatchNotFound = errors.New("match not found")
)

// ErrStorageUnavailable marks a retryable store fault. Every write path is
// idempotent, so callers may retry the whole submission.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Best-effort path errors. These never reach the submitting actor.
var (
	ErrChannelClosed        = errors.New("realtime channel closed")
	ErrSlowSubscriber       = errors.New("realtime subscriber fell behind")
	ErrNoEndpoint           = errors.New("no push endpoint registered")
	ErrNotificationDelivery = errors.New("notification delivery failed")
)
