package reporting

import (
	"context"
	"testing"
	"time"

	"voice-auth-ivr/internal/calls"
)

func TestSummary_RequiresValidRange(t *testing.T) {
	svc := NewService(calls.NewMemoryRepo(), 3)
	now := time.Now()

	if _, err := svc.Summary(context.Background(), SummaryRequest{}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.Summary(context.Background(), SummaryRequest{Range: TimeRange{From: now, To: now}}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}

func TestSummary_AggregatesOutcomes(t *testing.T) {
	repo := calls.NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := []calls.Call{
		{CallID: "a", StartedAt: base.Add(time.Hour), Outcome: calls.OutcomeVerified, NewUser: true, EnrollCount: 3, EnrollAttempts: 4, VerifyAttempts: 1, Confidence: 90, DurationSeconds: 60},
		{CallID: "b", StartedAt: base.Add(2 * time.Hour), Outcome: calls.OutcomeVerified, VerifyAttempts: 2, Confidence: 80, DurationSeconds: 30},
		{CallID: "c", StartedAt: base.Add(3 * time.Hour), Outcome: calls.OutcomeEnrollmentAbandoned, NewUser: true, EnrollCount: 1, EnrollAttempts: 2, DurationSeconds: 20},
		{CallID: "d", StartedAt: base.Add(4 * time.Hour), Outcome: calls.OutcomeUnavailable, DurationSeconds: 10},
		// outside the range
		{CallID: "e", StartedAt: base.Add(48 * time.Hour), Outcome: calls.OutcomeVerified, Confidence: 10},
	}
	for _, r := range rows {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	out, err := NewService(repo, 3).Summary(ctx, SummaryRequest{Range: TimeRange{From: base, To: base.Add(24 * time.Hour)}})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.TotalCalls != 4 {
		t.Fatalf("expected 4 calls, got %d", out.TotalCalls)
	}
	if out.ByOutcome[calls.OutcomeVerified] != 2 || out.ByOutcome[calls.OutcomeUnavailable] != 1 || out.ByOutcome[calls.OutcomeHangup] != 0 {
		t.Fatalf("unexpected outcome counts: %+v", out.ByOutcome)
	}
	if out.NewUsers != 2 || out.EnrollmentsCompleted != 1 || out.VerificationsPassed != 2 {
		t.Fatalf("unexpected counters: %+v", out)
	}
	if out.AverageConfidence != 85 {
		t.Fatalf("expected average confidence 85, got %v", out.AverageConfidence)
	}
	if out.AverageEnrollAttempts != 1.5 || out.AverageVerifyAttempts != 0.75 {
		t.Fatalf("unexpected attempt averages: %v %v", out.AverageEnrollAttempts, out.AverageVerifyAttempts)
	}
	if out.TotalDurationSeconds != 120 || out.AverageDurationSeconds != 30 {
		t.Fatalf("unexpected durations: %d %d", out.TotalDurationSeconds, out.AverageDurationSeconds)
	}
}
