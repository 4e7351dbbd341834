package mediasync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultCycleTable records the outcome of each finished cycle.
const DefaultCycleTable = "media_sync_cycle"

// CycleTableDDL returns the DDL for the cycle history table.
func CycleTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + DefaultCycleTable + ` (
    run_id           TEXT PRIMARY KEY,
    snapshot_version INTEGER NOT NULL,
    staged           INTEGER NOT NULL DEFAULT 0,
    remote_listed    INTEGER NOT NULL DEFAULT 0,
    cdn_mismatches   INTEGER NOT NULL DEFAULT 0,
    not_found        INTEGER NOT NULL DEFAULT 0,
    marked_seen      INTEGER NOT NULL DEFAULT 0,
    collected        INTEGER NOT NULL DEFAULT 0,
    remote_deleted   INTEGER NOT NULL DEFAULT 0,
    stale            INTEGER NOT NULL DEFAULT 0,
    finished_at      INTEGER NOT NULL
);`
}

// History persists cycle reports and confirmation streaks next to the
// snapshot table.
type History struct {
	db *sql.DB
}

// NewHistory ensures the cycle and presence tables exist.
func NewHistory(ctx context.Context, db *sql.DB) (*History, error) {
	if db == nil {
		return nil, fmt.Errorf("mediasync: db is nil")
	}
	if _, err := db.ExecContext(ctx, CycleTableDDL()); err != nil {
		return nil, fmt.Errorf("mediasync: create %s: %w", DefaultCycleTable, err)
	}
	if _, err := db.ExecContext(ctx, PresenceTableDDL()); err != nil {
		return nil, fmt.Errorf("mediasync: create %s: %w", DefaultPresenceTable, err)
	}
	return &History{db: db}, nil
}

// Record stores the summary of a finished cycle.
func (h *History) Record(ctx context.Context, r Report, finishedAt time.Time) error {
	_, err := h.db.ExecContext(ctx, `INSERT INTO `+DefaultCycleTable+`(
    run_id, snapshot_version, staged, remote_listed, cdn_mismatches, not_found, marked_seen, collected, remote_deleted, stale, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Version, r.Staged, r.RemoteListed, len(r.CdnMismatches), len(r.NotFound),
		r.MarkedSeen, r.Collected, r.RemoteDeleted, len(r.Stale), finishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("mediasync: record cycle %s: %w", r.RunID, err)
	}
	return nil
}

// Last returns the most recently recorded cycle, or nil when none exists.
func (h *History) Last(ctx context.Context) (*CycleState, error) {
	var st CycleState
	var finished int64
	err := h.db.QueryRowContext(ctx, `SELECT run_id, snapshot_version, staged, remote_listed, cdn_mismatches, not_found,
    marked_seen, collected, remote_deleted, stale, finished_at
FROM `+DefaultCycleTable+` ORDER BY finished_at DESC, rowid DESC LIMIT 1`).Scan(
		&st.RunID, &st.Version, &st.Staged, &st.RemoteListed, &st.CdnMismatches, &st.NotFound,
		&st.MarkedSeen, &st.Collected, &st.RemoteDeleted, &st.Stale, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mediasync: last cycle: %w", err)
	}
	st.FinishedAt = time.UnixMilli(finished)
	return &st, nil
}
