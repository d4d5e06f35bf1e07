package reporting

import (
	"time"

	"voice-auth-ivr/internal/calls"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated call outcomes for calls started in
// [From, To).
type SummaryRequest struct {
	Range TimeRange `json:"range"`
}

type Summary struct {
	Range TimeRange `json:"range"`

	TotalCalls int                   `json:"total_calls"`
	ByOutcome  map[calls.Outcome]int `json:"by_outcome"`

	NewUsers              int     `json:"new_users"`
	EnrollmentsCompleted  int     `json:"enrollments_completed"`
	VerificationsPassed   int     `json:"verifications_passed"`
	AverageConfidence     float64 `json:"average_confidence"`
	AverageEnrollAttempts float64 `json:"average_enroll_attempts"`
	AverageVerifyAttempts float64 `json:"average_verify_attempts"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}
