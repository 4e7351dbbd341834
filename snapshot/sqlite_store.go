package snapshot

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultStageBatchSize = 500

	// maxLookupIDs bounds the host parameters of a single IN (...) lookup.
	maxLookupIDs = 500

	entryColumns = `media_id, cdn, plaintext_hash, remote_key, is_thumbnail, snapshot_version, is_pending, last_seen_version`

	// currentVersionCTE exposes the current version as cur.v inside a single
	// statement so every row of a read sees the same snapshot.
	currentVersionCTE = `WITH cur AS (SELECT COALESCE(MAX(snapshot_version), 0) AS v FROM media_snapshot) `
)

// SQLiteStore is the SQLite-backed implementation of Store. Writers are
// serialized in process by a mutex and across processes by immediate
// transactions; readers never take the mutex.
type SQLiteStore struct {
	db             *sql.DB
	log            zerolog.Logger
	stageBatchSize int

	writeMu sync.Mutex
}

// Option configures a SQLiteStore.
type Option func(s *SQLiteStore)

// WithLogger sets the logger used for commit and collection events.
// Default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *SQLiteStore) {
		s.log = log
	}
}

// WithStageBatchSize sets how many entries are upserted per staging
// transaction. Values <= 0 keep the default of 500.
func WithStageBatchSize(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.stageBatchSize = n
		}
	}
}

// NewSQLiteStore creates a new SQLite-backed Store. It ensures the
// media_snapshot schema exists in the provided database.
func NewSQLiteStore(db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		return nil, err
	}
	s := &SQLiteStore{
		db:             db,
		log:            zerolog.Nop(),
		stageBatchSize: defaultStageBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentVersion(ctx context.Context, q queryRower) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(snapshot_version), 0) FROM media_snapshot`).Scan(&v)
	return v, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner, extra ...any) (MediaEntry, error) {
	var e MediaEntry
	dest := append([]any{
		&e.MediaID, &e.Cdn, &e.PlaintextHash, &e.RemoteKey, &e.IsThumbnail,
		&e.SnapshotVersion, &e.IsPending, &e.LastSeenVersion,
	}, extra...)
	err := r.Scan(dest...)
	return e, err
}

func collectEntries(rows *sql.Rows) ([]MediaEntry, error) {
	defer rows.Close()
	var out []MediaEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// chunkIDs splits ids into groups of at most size, dropping duplicates.
func chunkIDs(ids []string, size int) [][]string {
	seen := make(map[string]struct{}, len(ids))
	var out [][]string
	var cur []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cur = append(cur, id)
		if len(cur) == size {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func idArgs(prefix []any, ids []string) []any {
	args := make([]any, 0, len(prefix)+len(ids))
	args = append(args, prefix...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
