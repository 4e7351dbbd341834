package snapshot

import (
	"context"
	"fmt"
)

const selectStats = currentVersionCTE + `
SELECT cur.v,
       COALESCE(SUM(CASE WHEN is_pending = 1 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN cur.v != 0 AND snapshot_version = cur.v THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN cur.v != 0 AND snapshot_version = cur.v AND is_thumbnail = 1 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN is_pending = 0 AND snapshot_version != 0 AND snapshot_version < cur.v THEN 1 ELSE 0 END), 0),
       COUNT(media_snapshot.id)
FROM cur LEFT JOIN media_snapshot ON 1 = 1`

// Stats returns row counts computed in a single statement.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, selectStats).Scan(
		&st.Version, &st.Pending, &st.Current, &st.CurrentThumbnails, &st.Superseded, &st.Total,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("snapshot: stats: %w", err)
	}
	st.CurrentFullSize = st.Current - st.CurrentThumbnails
	return st, nil
}

// CountCurrent returns the number of entries in the current snapshot,
// optionally restricted to full-size entries.
func (s *SQLiteStore) CountCurrent(ctx context.Context, includeThumbnails bool) (int, error) {
	q := currentVersionCTE + `SELECT COUNT(*) FROM media_snapshot, cur WHERE cur.v != 0 AND snapshot_version = cur.v`
	if !includeThumbnails {
		q += ` AND is_thumbnail = 0`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("snapshot: count current: %w", err)
	}
	return n, nil
}

// CountPending returns the number of staged, uncommitted entries.
func (s *SQLiteStore) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_snapshot WHERE is_pending = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("snapshot: count pending: %w", err)
	}
	return n, nil
}
