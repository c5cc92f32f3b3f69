package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateOrphanedRemoteEventsTable, downCreateOrphanedRemoteEventsTable)
}

func upCreateOrphanedRemoteEventsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE orphaned_remote_events (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  session_id UUID NOT NULL,
	  remote_event_id TEXT NOT NULL,
	  reason TEXT NOT NULL DEFAULT '',
	  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateOrphanedRemoteEventsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS orphaned_remote_events;`)
	return err
}
