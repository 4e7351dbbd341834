package snapshot

import (
	"context"
	"fmt"

	"github.com/viant/mediasnap/internal/metrics"
)

const upsertPending = `
INSERT INTO media_snapshot(media_id, cdn, plaintext_hash, remote_key, is_thumbnail, snapshot_version, is_pending, last_seen_version)
VALUES (?, ?, ?, ?, ?, 0, 1, 0)
ON CONFLICT(media_id, snapshot_version) DO UPDATE SET
  cdn = excluded.cdn,
  plaintext_hash = excluded.plaintext_hash,
  remote_key = excluded.remote_key,
  is_thumbnail = excluded.is_thumbnail,
  is_pending = 1,
  last_seen_version = 0`

// WritePendingMediaEntries upserts entries as pending rows with
// UnknownVersion. Calls are additive: staging thumbnails after full-size
// entries keeps both. Each batch runs in its own transaction, so a failure
// leaves earlier batches in place and the whole call can be retried.
func (s *SQLiteStore) WritePendingMediaEntries(ctx context.Context, entries []MediaEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.MediaID == "" {
			return ErrInvalidEntry
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for start := 0; start < len(entries); start += s.stageBatchSize {
		end := min(start+s.stageBatchSize, len(entries))
		if err := s.stageBatch(ctx, entries[start:end]); err != nil {
			return fmt.Errorf("snapshot: stage entries %d-%d: %w", start, end-1, err)
		}
		metrics.RecordStaged(end - start)
	}
	return nil
}

func (s *SQLiteStore) stageBatch(ctx context.Context, batch []MediaEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertPending)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range batch {
		hash, key := e.PlaintextHash, e.RemoteKey
		if hash == nil {
			hash = []byte{}
		}
		if key == nil {
			key = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, e.MediaID, e.Cdn, hash, key, e.IsThumbnail); err != nil {
			return err
		}
	}
	return tx.Commit()
}
