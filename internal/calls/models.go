package calls

import "time"

// Call is the record written once per call when it terminates.
//
// NOTE: This is a domain model only. Gateway-specific fields stay in the
// telephony adapter; the journal (internal/audit) carries the step-by-step
// history.
type Call struct {
	CallID   string `json:"call_id" db:"call_id"`
	CallerID string `json:"caller_id" db:"caller_id"`
	// UserID is the voice biometric user, empty if none was resolved.
	UserID string `json:"user_id,omitempty" db:"user_id"`

	Outcome Outcome `json:"outcome" db:"outcome"`
	// NewUser is true when the user was created during this call.
	NewUser bool `json:"new_user" db:"new_user"`

	// EnrollCount is the number of accepted enrollments in this call.
	EnrollCount    int `json:"enroll_count" db:"enroll_count"`
	EnrollAttempts int `json:"enroll_attempts" db:"enroll_attempts"`
	VerifyAttempts int `json:"verify_attempts" db:"verify_attempts"`

	// Confidence of the passing verification, 0 otherwise.
	Confidence float64 `json:"confidence,omitempty" db:"confidence"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	EndedAt   time.Time `json:"ended_at" db:"ended_at"`

	// DurationSeconds is kept as an int for JSON friendliness.
	DurationSeconds int `json:"duration" db:"duration"`
}

type Outcome string

const (
	OutcomeVerified              Outcome = "verified"
	OutcomeVerificationAbandoned Outcome = "verification_abandoned"
	OutcomeEnrollmentAbandoned   Outcome = "enrollment_abandoned"
	OutcomeUnavailable           Outcome = "unavailable"
	OutcomeHangup                Outcome = "hangup"
	OutcomeFailed                Outcome = "failed"
	OutcomeInterrupted           Outcome = "interrupted"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeVerified,
	OutcomeVerificationAbandoned,
	OutcomeEnrollmentAbandoned,
	OutcomeUnavailable,
	OutcomeHangup,
	OutcomeFailed,
	OutcomeInterrupted,
}

// Finish stamps the end time and derived duration.
func (c *Call) Finish(outcome Outcome, at time.Time) {
	c.Outcome = outcome
	c.EndedAt = at
	if !c.StartedAt.IsZero() && at.After(c.StartedAt) {
		c.DurationSeconds = int(at.Sub(c.StartedAt).Seconds())
	}
}
