package audit

import "time"

// Event is an immutable, append-only call journal record.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id is required; every record belongs to exactly one call.
// - Journal writes are best-effort; do not block a call on journal failures.
//
// Storage (Postgres): table ivr_audit_events, INSERT-only.
type Event struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	// Type indicates what happened in the call.
	Type EventType `json:"type" db:"type"`

	CallerID string `json:"caller_id,omitempty" db:"caller_id"`
	// UserID is the voice biometric user, once known.
	UserID string `json:"user_id,omitempty" db:"user_id"`

	// State is the flow state the event was recorded in.
	State string `json:"state,omitempty" db:"state"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details (response codes, confidence).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallStarted        EventType = "call_started"
	EventTypeCallerIdentified   EventType = "caller_identified"
	EventTypeUserCreated        EventType = "user_created"
	EventTypeUserCreateFailed   EventType = "user_create_failed"
	EventTypeEnrollmentAccepted EventType = "enrollment_accepted"
	EventTypeEnrollmentRejected EventType = "enrollment_rejected"
	EventTypeVerificationPassed EventType = "verification_passed"
	EventTypeVerificationFailed EventType = "verification_failed"
	EventTypeCallEnded          EventType = "call_ended"
)
