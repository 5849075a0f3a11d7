package bridge

import (
	"context"
	"database/sql"
)

type journal struct {
	db *sql.DB
}

// NewJournal records exchanges into postgres.
func NewJournal(db *sql.DB) Journal {
	return &journal{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id         BIGSERIAL PRIMARY KEY,
	route_key  TEXT NOT NULL,
	session_id TEXT NOT NULL,
	direction  TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (j *journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO exchanges (route_key, session_id, direction, text)
		VALUES ($1, $2, $3, $4)
	`,
		e.Key,
		e.SessionID,
		string(e.Direction),
		e.Text,
	)
	return err
}

type NopJournal struct{}

func (NopJournal) Record(context.Context, Entry) error { return nil }
