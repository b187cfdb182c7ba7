package model

import "time"

// NotificationKind separates confirmations from failures
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a short-lived, user-visible message about a mutation outcome
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Entity    *Key             `json:"entity,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// MutationRecord is the journal entry of one optimistic mutation
type MutationRecord struct {
	ID         string    `json:"id"`
	Entity     Key       `json:"entity"`
	Op         string    `json:"op"`      // "update" or "delete"
	Outcome    string    `json:"outcome"` // "committed", "rolled_back" or "rollback_failed"
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// TrackingStatus is a point-in-time view of the poller for one pollable type
type TrackingStatus struct {
	Type       Type      `json:"type"`
	TrackedIDs []string  `json:"trackedIds"`
	InFlight   bool      `json:"inFlight"`
	LastPoll   time.Time `json:"lastPoll,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}
