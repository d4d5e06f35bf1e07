package calls

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"voice-auth-ivr/pkg/utils"
)

var ErrInvalidCall = errors.New("calls: call_id required")

// Repository stores one record per call. Save is an upsert on call_id.
type Repository interface {
	Save(ctx context.Context, c Call) error
	// List returns calls started in [from, to).
	List(ctx context.Context, from, to time.Time) ([]Call, error)
}

// Schema is the DDL for the call record table. Safe to re-run.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ivr_calls (
	call_id         TEXT PRIMARY KEY,
	caller_id       TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL DEFAULT '',
	outcome         TEXT NOT NULL,
	new_user        BOOLEAN NOT NULL DEFAULT FALSE,
	enroll_count    INT NOT NULL DEFAULT 0,
	enroll_attempts INT NOT NULL DEFAULT 0,
	verify_attempts INT NOT NULL DEFAULT 0,
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ NOT NULL,
	duration        INT NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS ivr_calls_started_idx ON ivr_calls (started_at)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Save(ctx context.Context, c Call) error {
	if c.CallID == "" {
		return ErrInvalidCall
	}
	const q = `
INSERT INTO ivr_calls (call_id, caller_id, user_id, outcome, new_user, enroll_count, enroll_attempts, verify_attempts, confidence, started_at, ended_at, duration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (call_id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	outcome = EXCLUDED.outcome,
	new_user = EXCLUDED.new_user,
	enroll_count = EXCLUDED.enroll_count,
	enroll_attempts = EXCLUDED.enroll_attempts,
	verify_attempts = EXCLUDED.verify_attempts,
	confidence = EXCLUDED.confidence,
	ended_at = EXCLUDED.ended_at,
	duration = EXCLUDED.duration
`
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			c.CallID,
			c.CallerID,
			c.UserID,
			string(c.Outcome),
			c.NewUser,
			c.EnrollCount,
			c.EnrollAttempts,
			c.VerifyAttempts,
			c.Confidence,
			c.StartedAt,
			c.EndedAt,
			c.DurationSeconds,
		)
		return err
	})
}

func (r *PostgresRepo) List(ctx context.Context, from, to time.Time) ([]Call, error) {
	const q = `
SELECT call_id, caller_id, user_id, outcome, new_user, enroll_count, enroll_attempts, verify_attempts, confidence, started_at, ended_at, duration
FROM ivr_calls
WHERE started_at >= $1 AND started_at < $2
ORDER BY started_at
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		var (
			c       Call
			outcome string
		)
		if err := rows.Scan(
			&c.CallID,
			&c.CallerID,
			&c.UserID,
			&outcome,
			&c.NewUser,
			&c.EnrollCount,
			&c.EnrollAttempts,
			&c.VerifyAttempts,
			&c.Confidence,
			&c.StartedAt,
			&c.EndedAt,
			&c.DurationSeconds,
		); err != nil {
			return nil, err
		}
		c.Outcome = Outcome(outcome)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MemoryRepo keeps call records in memory. Used by tests and local runs
// without DB_HOST.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{calls: map[string]Call{}} }

func (r *MemoryRepo) Save(ctx context.Context, c Call) error {
	if c.CallID == "" {
		return ErrInvalidCall
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.CallID] = c
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, from, to time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// Get returns a stored call by id.
func (r *MemoryRepo) Get(callID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	return c, ok
}
