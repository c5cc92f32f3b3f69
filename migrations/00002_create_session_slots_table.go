package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionSlotsTable, downCreateSessionSlotsTable)
}

func upCreateSessionSlotsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE session_slots (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	  start_date DATE,
	  end_date DATE,
	  start_time TEXT NOT NULL,
	  end_time TEXT NOT NULL,
	  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);
	CREATE INDEX idx_session_slots_session_id ON session_slots (session_id);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreateSessionSlotsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS session_slots;`
	_, err := tx.ExecContext(ctx, query)
	if err != nil {
		return err
	}
	return nil
}
