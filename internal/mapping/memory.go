package mapping

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for local runs and tests.
// Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, clock: time.Now}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) Get(ctx context.Context, callerID string) (string, bool, error) {
	if callerID == "" {
		return "", false, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[callerID]
	if !ok {
		return "", false, nil
	}
	if !s.clock().Before(e.expiresAt) {
		delete(s.entries, callerID)
		return "", false, nil
	}
	return e.userID, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, callerID, userID string, ttl time.Duration) error {
	if err := validatePut(callerID, userID, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[callerID] = memoryEntry{userID: userID, expiresAt: s.clock().Add(ttl)}
	return nil
}
