package audit

import (
	"context"
	"database/sql"
)

// Schema is the DDL for the journal table. Safe to re-run.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS ivr_audit_events (
	id         TEXT PRIMARY KEY,
	call_id    TEXT NOT NULL,
	type       TEXT NOT NULL,
	caller_id  TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ivr_audit_events_call_idx ON ivr_audit_events (call_id, created_at)`,
}

// PostgresRepo stores journal events through database/sql (pgx stdlib).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO ivr_audit_events (id, call_id, type, caller_id, user_id, state, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CallID,
		string(e.Type),
		e.CallerID,
		e.UserID,
		e.State,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, callID string) ([]Event, error) {
	const q = `
SELECT id, call_id, type, caller_id, user_id, state, message, metadata, created_at
FROM ivr_audit_events
WHERE call_id = $1
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e  Event
			et string
		)
		if err := rows.Scan(
			&e.ID,
			&e.CallID,
			&et,
			&e.CallerID,
			&e.UserID,
			&e.State,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(et)
		out = append(out, e)
	}
	return out, rows.Err()
}
