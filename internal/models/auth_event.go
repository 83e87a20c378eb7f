package models

import "time"

// AuthEventType identifies an authentication event
type AuthEventType string

const (
	AuthEventInvitationSent         AuthEventType = "InvitationSent"
	AuthEventInvitationAccepted     AuthEventType = "InvitationAccepted"
	AuthEventPasswordResetRequested AuthEventType = "PasswordResetRequested"
	AuthEventPasswordResetCompleted AuthEventType = "PasswordResetCompleted"
	AuthEventTokenRejected          AuthEventType = "TokenRejected"
)

// AuthEvent is an append-only authentication log entry
type AuthEvent struct {
	EventID   string        `json:"EventId"`
	UserName  string        `json:"UserName"`
	Type      AuthEventType `json:"Type"`
	Details   string        `json:"Details,omitempty"`
	CreatedAt time.Time     `json:"CreatedAt"`
}
