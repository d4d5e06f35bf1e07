package reporting

import (
	"context"
	"errors"
	"time"

	"voice-auth-ivr/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. calls.Repository satisfies it.
type Repository interface {
	List(ctx context.Context, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo Repository
	// enrollmentsRequired is the accepted-enrollment count that completes
	// enrollment.
	enrollmentsRequired int
}

func NewService(repo Repository, enrollmentsRequired int) *Service {
	if enrollmentsRequired <= 0 {
		enrollmentsRequired = 3
	}
	return &Service{repo: repo, enrollmentsRequired: enrollmentsRequired}
}

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.List(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Range: req.Range, ByOutcome: make(map[calls.Outcome]int, len(calls.Outcomes))}
	for _, o := range calls.Outcomes {
		out.ByOutcome[o] = 0
	}

	var (
		confidenceSum  float64
		enrollAttempts int
		verifyAttempts int
	)
	for _, c := range rows {
		out.TotalCalls++
		out.ByOutcome[c.Outcome]++
		out.TotalDurationSeconds += c.DurationSeconds
		enrollAttempts += c.EnrollAttempts
		verifyAttempts += c.VerifyAttempts

		if c.NewUser {
			out.NewUsers++
		}
		if c.EnrollCount >= s.enrollmentsRequired {
			out.EnrollmentsCompleted++
		}
		if c.Outcome == calls.OutcomeVerified {
			out.VerificationsPassed++
			confidenceSum += c.Confidence
		}
	}

	if out.TotalCalls > 0 {
		n := float64(out.TotalCalls)
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.AverageEnrollAttempts = float64(enrollAttempts) / n
		out.AverageVerifyAttempts = float64(verifyAttempts) / n
	}
	if out.VerificationsPassed > 0 {
		out.AverageConfidence = confidenceSum / float64(out.VerificationsPassed)
	}
	return out, nil
}
