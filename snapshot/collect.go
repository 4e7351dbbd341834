package snapshot

import (
	"context"
	"fmt"

	"github.com/viant/mediasnap/internal/metrics"
)

const selectOldPage = currentVersionCTE + `
SELECT o.media_id, o.cdn, o.plaintext_hash, o.remote_key, o.is_thumbnail, o.snapshot_version, o.is_pending, o.last_seen_version,
       EXISTS (SELECT 1 FROM media_snapshot c WHERE c.media_id = o.media_id AND c.snapshot_version = cur.v)
FROM media_snapshot o, cur
WHERE o.is_pending = 0
  AND o.snapshot_version != 0
  AND o.snapshot_version < cur.v
ORDER BY o.snapshot_version, o.id
LIMIT ?`

// PageOfOldMediaObjects returns up to pageSize committed entries from
// generations older than the current one, oldest first. Pending and current
// rows are never returned. The order is stable, so deleting a page and
// asking again advances through the remaining rows.
func (s *SQLiteStore) PageOfOldMediaObjects(ctx context.Context, pageSize int) ([]MediaEntry, error) {
	if pageSize <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, selectOldPage, pageSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot: old media page: %w", err)
	}
	defer rows.Close()

	var out []MediaEntry
	for rows.Next() {
		var retained bool
		e, err := scanEntry(rows, &retained)
		if err != nil {
			return nil, fmt.Errorf("snapshot: old media page: %w", err)
		}
		e.RetainedInCurrent = retained
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: old media page: %w", err)
	}
	return out, nil
}

// DeleteOldMediaObjects deletes exactly the (media id, version) rows named
// by page. Only superseded rows are eligible: entries that are already gone,
// pending or still current are skipped without error, so retries and
// overlapping collection runs are harmless.
func (s *SQLiteStore) DeleteOldMediaObjects(ctx context.Context, page []MediaEntry) error {
	if len(page) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: delete old media: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version, err := currentVersion(ctx, tx)
	if err != nil {
		return fmt.Errorf("snapshot: delete old media: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM media_snapshot
WHERE media_id = ? AND snapshot_version = ? AND is_pending = 0 AND snapshot_version != 0 AND snapshot_version < ?`)
	if err != nil {
		return fmt.Errorf("snapshot: delete old media: %w", err)
	}
	defer stmt.Close()

	var deleted int64
	for _, e := range page {
		res, err := stmt.ExecContext(ctx, e.MediaID, e.SnapshotVersion, version)
		if err != nil {
			return fmt.Errorf("snapshot: delete old media %s@%d: %w", e.MediaID, e.SnapshotVersion, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("snapshot: delete old media %s@%d: %w", e.MediaID, e.SnapshotVersion, err)
		}
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: delete old media: %w", err)
	}

	metrics.RecordCollected(deleted)
	s.log.Debug().Int("requested", len(page)).Int64("deleted", deleted).Msg("old media rows deleted")
	return nil
}

// MarkSeenOnRemote sets the last-seen watermark of the named current
// entries to version. Ids outside the current snapshot are ignored and
// snapshot versions are never changed.
func (s *SQLiteStore) MarkSeenOnRemote(ctx context.Context, mediaIDs []string, version int64) error {
	if version < 0 {
		return ErrInvalidVersion
	}
	if len(mediaIDs) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: mark seen: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := currentVersion(ctx, tx)
	if err != nil {
		return fmt.Errorf("snapshot: mark seen: %w", err)
	}
	if current == UnknownVersion {
		return nil
	}

	var marked int64
	for _, chunk := range chunkIDs(mediaIDs, maxLookupIDs) {
		q := `UPDATE media_snapshot SET last_seen_version = ? WHERE snapshot_version = ? AND media_id IN (` + placeholders(len(chunk)) + `)`
		res, err := tx.ExecContext(ctx, q, idArgs([]any{version, current}, chunk)...)
		if err != nil {
			return fmt.Errorf("snapshot: mark seen: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("snapshot: mark seen: %w", err)
		}
		marked += n
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: mark seen: %w", err)
	}
	s.log.Debug().Int64("version", version).Int64("marked", marked).Msg("media marked seen on remote")
	return nil
}

// MediaObjectsLastSeenOnCdnBefore returns current entries whose last-seen
// watermark is strictly older than version, including entries never
// confirmed at all.
func (s *SQLiteStore) MediaObjectsLastSeenOnCdnBefore(ctx context.Context, version int64) ([]MediaEntry, error) {
	q := currentVersionCTE + `SELECT ` + entryColumns + ` FROM media_snapshot, cur
WHERE cur.v != 0 AND snapshot_version = cur.v AND last_seen_version < ?
ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, version)
	if err != nil {
		return nil, fmt.Errorf("snapshot: last seen before %d: %w", version, err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("snapshot: last seen before %d: %w", version, err)
	}
	return entries, nil
}
