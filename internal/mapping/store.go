// Package mapping remembers which biometric user belongs to which caller.
//
// Entries expire; a caller whose mapping expired is treated as new and
// enrolled again.
package mapping

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a caller → user mapping is kept (30 days).
const DefaultTTL = 2592000 * time.Second

var ErrInvalidArgument = errors.New("mapping: invalid argument")

// Store is the persistence contract for caller mappings.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the user id for callerID. found is false when no live
	// mapping exists; err is reserved for store failures.
	Get(ctx context.Context, callerID string) (userID string, found bool, err error)
	Put(ctx context.Context, callerID, userID string, ttl time.Duration) error
}

func validatePut(callerID, userID string, ttl time.Duration) error {
	if callerID == "" || userID == "" || ttl <= 0 {
		return ErrInvalidArgument
	}
	return nil
}
