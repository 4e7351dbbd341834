package mediasync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viant/mediasnap/snapshot"
)

// DefaultPresenceTable tracks, per current media id, the last version the
// remote listing confirmed it. Commits reset the snapshot watermark, so
// confirmation streaks across generations are kept here.
const DefaultPresenceTable = "media_sync_presence"

const presenceChunk = 500

// PresenceTableDDL returns the DDL for the presence table. baseline is the
// version before the id first became current; confirmed is the last version
// the remote listing reported it, 0 when never.
func PresenceTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + DefaultPresenceTable + ` (
    media_id  TEXT PRIMARY KEY,
    baseline  INTEGER NOT NULL,
    confirmed INTEGER NOT NULL DEFAULT 0
);`
}

// TrackPresence records the outcome of reconciling version: ids of the
// current snapshot not yet tracked start a streak at version-1, confirmed
// ids move to version and ids that left the snapshot are forgotten.
func (h *History) TrackPresence(ctx context.Context, version int64, confirmed []string) error {
	if version == snapshot.UnknownVersion {
		return nil
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mediasync: track presence: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+DefaultPresenceTable+`(media_id, baseline, confirmed)
SELECT media_id, ?, 0 FROM `+snapshot.TableName+` WHERE snapshot_version = ?`, version-1, version); err != nil {
		return fmt.Errorf("mediasync: track presence: %w", err)
	}
	for start := 0; start < len(confirmed); start += presenceChunk {
		chunk := confirmed[start:min(start+presenceChunk, len(confirmed))]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, version)
		for _, id := range chunk {
			args = append(args, id)
		}
		q := `UPDATE ` + DefaultPresenceTable + ` SET confirmed = ? WHERE media_id IN (` + marks(len(chunk)) + `)`
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("mediasync: track presence: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+DefaultPresenceTable+`
WHERE media_id NOT IN (SELECT media_id FROM `+snapshot.TableName+` WHERE snapshot_version = ?)`, version); err != nil {
		return fmt.Errorf("mediasync: track presence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mediasync: track presence: %w", err)
	}
	return nil
}

// Unconfirmed keeps the candidates whose last confirmation, or the version
// before they appeared when never confirmed, is at least versions old at
// version. An untracked candidate counts as new in version.
func (h *History) Unconfirmed(ctx context.Context, candidates []snapshot.MediaEntry, version, versions int64) ([]snapshot.MediaEntry, error) {
	if len(candidates) == 0 || versions <= 0 {
		return nil, nil
	}
	threshold := version - versions + 1
	lastSeen := make(map[string]int64, len(candidates))
	for start := 0; start < len(candidates); start += presenceChunk {
		chunk := candidates[start:min(start+presenceChunk, len(candidates))]
		args := make([]any, len(chunk))
		for i, e := range chunk {
			args[i] = e.MediaID
		}
		rows, err := h.db.QueryContext(ctx, `SELECT media_id, MAX(baseline, confirmed) FROM `+DefaultPresenceTable+`
WHERE media_id IN (`+marks(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("mediasync: unconfirmed media: %w", err)
		}
		if err := scanPresence(rows, lastSeen); err != nil {
			return nil, fmt.Errorf("mediasync: unconfirmed media: %w", err)
		}
	}
	var out []snapshot.MediaEntry
	for _, e := range candidates {
		seen, ok := lastSeen[e.MediaID]
		if !ok {
			seen = version - 1
		}
		if seen < threshold {
			out = append(out, e)
		}
	}
	return out, nil
}

func scanPresence(rows *sql.Rows, into map[string]int64) error {
	defer rows.Close()
	for rows.Next() {
		var id string
		var seen int64
		if err := rows.Scan(&id, &seen); err != nil {
			return err
		}
		into[id] = seen
	}
	return rows.Err()
}

func marks(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
