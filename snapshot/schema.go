package snapshot

import (
	"context"
	"database/sql"
	"fmt"
)

// TableName is the table holding every snapshot generation.
const TableName = "media_snapshot"

// Pending rows always carry snapshot_version 0, so the unique constraint
// also limits each media id to a single pending row.
var schema = []string{`
CREATE TABLE IF NOT EXISTS media_snapshot (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    media_id          TEXT NOT NULL,
    cdn               INTEGER NOT NULL,
    plaintext_hash    BLOB NOT NULL,
    remote_key        BLOB NOT NULL,
    is_thumbnail      INTEGER NOT NULL DEFAULT 0,
    snapshot_version  INTEGER NOT NULL DEFAULT 0,
    is_pending        INTEGER NOT NULL DEFAULT 0,
    last_seen_version INTEGER NOT NULL DEFAULT 0,
    UNIQUE(media_id, snapshot_version)
);`,
	`CREATE INDEX IF NOT EXISTS media_snapshot_version_idx ON media_snapshot(snapshot_version, media_id);`,
	`CREATE INDEX IF NOT EXISTS media_snapshot_pending_idx ON media_snapshot(is_pending);`,
}

// EnsureSchema creates the media_snapshot table and its indices in the
// provided database if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return ErrNilDB
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("snapshot: ensure schema: %w", err)
		}
	}
	return nil
}
