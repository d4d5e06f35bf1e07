package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for journal events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, callID string) ([]Event, error)
}

// Service validates and stamps journal events.
//
// IMPORTANT:
// - The journal is internal-only; it is exposed to operators, never to callers.
// - Callers should treat journal writes as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock overrides the timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.clock = now
	return s
}

var (
	ErrInvalidEvent      = errors.New("audit: invalid event")
	ErrNotConfigured     = errors.New("audit: repository not configured")
	ErrMissingCallFilter = errors.New("audit: call_id required")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return ErrNotConfigured
	}
	if e.CallID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// CallEvents returns the journal of one call in write order.
func (s *Service) CallEvents(ctx context.Context, callID string) ([]Event, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	if callID == "" {
		return nil, ErrMissingCallFilter
	}
	return s.repo.List(ctx, callID)
}
