package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionsTable, downCreateSessionsTable)
}

func upCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE sessions (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  user_id BIGINT NOT NULL,
	  remote_event_id TEXT NOT NULL,
	  title TEXT NOT NULL,
	  description TEXT NOT NULL DEFAULT '',
	  slug TEXT UNIQUE NOT NULL,
	  duration INT NOT NULL CHECK (duration > 0),
	  booking_url TEXT NOT NULL,
	  username TEXT NOT NULL,
	  location TEXT,
	  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);
	CREATE INDEX idx_sessions_user_id ON sessions (user_id);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS sessions;`
	_, err := tx.ExecContext(ctx, query)
	if err != nil {
		return err
	}
	return nil
}
