package snapshot

import (
	"context"
	"fmt"

	"github.com/viant/mediasnap/internal/metrics"
)

// CommitPendingRows promotes every pending row into version current+1 in a
// single transaction and returns the version that is current afterwards.
// Rows of older versions are not touched; they simply stop being current.
//
// With no pending rows nothing changes and the existing version is
// returned. On failure the transaction is rolled back, the version does not
// advance and all rows stay pending.
func (s *SQLiteStore) CommitPendingRows(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordCommit("error", 0, 0)
		return 0, fmt.Errorf("snapshot: commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version, err := currentVersion(ctx, tx)
	if err != nil {
		metrics.RecordCommit("error", 0, 0)
		return 0, fmt.Errorf("snapshot: commit: read version: %w", err)
	}
	next := version + 1

	res, err := tx.ExecContext(ctx, `UPDATE media_snapshot SET snapshot_version = ?, is_pending = 0, last_seen_version = 0 WHERE is_pending = 1`, next)
	if err != nil {
		metrics.RecordCommit("error", 0, 0)
		return 0, fmt.Errorf("snapshot: commit: promote: %w", err)
	}
	promoted, err := res.RowsAffected()
	if err != nil {
		metrics.RecordCommit("error", 0, 0)
		return 0, fmt.Errorf("snapshot: commit: %w", err)
	}
	if promoted == 0 {
		metrics.RecordCommit("empty", 0, version)
		return version, nil
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordCommit("error", 0, 0)
		return 0, fmt.Errorf("snapshot: commit: %w", err)
	}

	metrics.RecordCommit("promoted", promoted, next)
	s.log.Info().Int64("version", next).Int64("promoted", promoted).Msg("snapshot committed")
	return next, nil
}

// CurrentSnapshotVersion returns the highest committed snapshot version, or
// 0 when nothing was ever committed. It is derived from the rows themselves.
func (s *SQLiteStore) CurrentSnapshotVersion(ctx context.Context) (int64, error) {
	v, err := currentVersion(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("snapshot: current version: %w", err)
	}
	return v, nil
}
