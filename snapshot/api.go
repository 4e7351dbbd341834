package snapshot

import (
	"context"
	"errors"
)

// UnknownVersion marks rows that were never committed.
const UnknownVersion int64 = 0

var (
	ErrNilDB          = errors.New("snapshot: db is nil")
	ErrInvalidEntry   = errors.New("snapshot: media entry requires a media id")
	ErrInvalidVersion = errors.New("snapshot: version must not be negative")
)

// MediaEntry is a single record describing one remote object, either the
// full-size or the thumbnail variant, and where it is believed to live.
type MediaEntry struct {
	MediaID       string
	Cdn           int
	PlaintextHash []byte
	RemoteKey     []byte
	IsThumbnail   bool

	// SnapshotVersion is UnknownVersion until the entry is committed.
	SnapshotVersion int64
	IsPending       bool

	// LastSeenVersion is the last version at which the remote backend
	// confirmed the object; zero when never confirmed.
	LastSeenVersion int64

	// RetainedInCurrent is only populated by PageOfOldMediaObjects. It is
	// true when the same media id is also part of the current snapshot, in
	// which case the remote object is still live and only the local row is
	// obsolete.
	RetainedInCurrent bool
}

// RemoteMediaRef is what the remote listing reports for one object.
type RemoteMediaRef struct {
	MediaID string
	Cdn     int
}

// Stats summarises row counts for progress reporting.
type Stats struct {
	Version           int64
	Pending           int
	Current           int
	CurrentFullSize   int
	CurrentThumbnails int
	Superseded        int
	Total             int
}

// Store defines the snapshot bookkeeping API consumed by the sync cycle.
type Store interface {
	// WritePendingMediaEntries upserts entries as pending rows. Later entries
	// with the same media id override earlier ones; committed rows are left
	// untouched.
	WritePendingMediaEntries(ctx context.Context, entries []MediaEntry) error

	// CommitPendingRows atomically promotes all pending rows into a new
	// snapshot version and returns the version that is current afterwards.
	// Without pending rows it is a no-op.
	CommitPendingRows(ctx context.Context) (int64, error)

	// CurrentSnapshotVersion returns the highest committed version, or 0.
	CurrentSnapshotVersion(ctx context.Context) (int64, error)

	// MediaObjectsWithNonMatchingCdn returns current local entries whose cdn
	// differs from the remote listing.
	MediaObjectsWithNonMatchingCdn(ctx context.Context, remote []RemoteMediaRef) ([]MediaEntry, error)

	// MediaObjectsThatCantBeFound returns the remote refs that are not part
	// of the current snapshot.
	MediaObjectsThatCantBeFound(ctx context.Context, remote []RemoteMediaRef) ([]RemoteMediaRef, error)

	// PageOfOldMediaObjects returns up to pageSize superseded entries.
	PageOfOldMediaObjects(ctx context.Context, pageSize int) ([]MediaEntry, error)

	// DeleteOldMediaObjects deletes the given superseded rows.
	DeleteOldMediaObjects(ctx context.Context, page []MediaEntry) error

	// MarkSeenOnRemote records that current entries were confirmed on the
	// remote backend as of version.
	MarkSeenOnRemote(ctx context.Context, mediaIDs []string, version int64) error

	// MediaObjectsLastSeenOnCdnBefore returns current entries whose last
	// confirmation is older than version.
	MediaObjectsLastSeenOnCdnBefore(ctx context.Context, version int64) ([]MediaEntry, error)

	// Stats returns row counts.
	Stats(ctx context.Context) (Stats, error)
}
