package mediasync

import (
	"context"
	"time"

	"github.com/viant/mediasnap/snapshot"
)

// LocalEnumerator produces the full list of locally retained media, both
// full-size and thumbnail variants.
type LocalEnumerator interface {
	EnumerateLocalMedia(ctx context.Context) ([]snapshot.MediaEntry, error)
}

// RemoteLister fetches what the backend believes it holds.
type RemoteLister interface {
	ListRemoteMedia(ctx context.Context) ([]snapshot.RemoteMediaRef, error)
}

// RemoteDeleter removes orphaned objects from the backend.
type RemoteDeleter interface {
	DeleteRemoteMedia(ctx context.Context, entries []snapshot.MediaEntry) error
}

// LocalEnumeratorFunc adapts a function to LocalEnumerator.
type LocalEnumeratorFunc func(ctx context.Context) ([]snapshot.MediaEntry, error)

func (f LocalEnumeratorFunc) EnumerateLocalMedia(ctx context.Context) ([]snapshot.MediaEntry, error) {
	return f(ctx)
}

// RemoteListerFunc adapts a function to RemoteLister.
type RemoteListerFunc func(ctx context.Context) ([]snapshot.RemoteMediaRef, error)

func (f RemoteListerFunc) ListRemoteMedia(ctx context.Context) ([]snapshot.RemoteMediaRef, error) {
	return f(ctx)
}

// RemoteDeleterFunc adapts a function to RemoteDeleter.
type RemoteDeleterFunc func(ctx context.Context, entries []snapshot.MediaEntry) error

func (f RemoteDeleterFunc) DeleteRemoteMedia(ctx context.Context, entries []snapshot.MediaEntry) error {
	return f(ctx, entries)
}

// Config captures the settings of a sync cycle.
type Config struct {
	// StageBatchSize controls how many local entries are staged per call.
	StageBatchSize int

	// CollectPageSize controls how many superseded rows are collected per page.
	CollectPageSize int

	// StaleAfterVersions is how many consecutive versions an entry may go
	// unconfirmed by the remote listing before it is reported stale. Streaks
	// are tracked by the History; without one only a value of 1 reports.
	StaleAfterVersions int64

	// DeleteRemote enables remote deletion of orphaned objects when a
	// RemoteDeleter is configured.
	DeleteRemote bool
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		StageBatchSize:     500,
		CollectPageSize:    1000,
		StaleAfterVersions: 3,
		DeleteRemote:       true,
	}
}

// Report summarises one cycle.
type Report struct {
	RunID         string
	Staged        int
	Version       int64
	RemoteListed  int
	CdnMismatches []snapshot.MediaEntry
	NotFound      []snapshot.RemoteMediaRef
	MarkedSeen    int
	Collected     int
	RemoteDeleted int
	Stale         []snapshot.MediaEntry
	Duration      time.Duration
}

// CycleState mirrors a row of media_sync_cycle.
type CycleState struct {
	RunID         string
	Version       int64
	Staged        int
	RemoteListed  int
	CdnMismatches int
	NotFound      int
	MarkedSeen    int
	Collected     int
	RemoteDeleted int
	Stale         int
	FinishedAt    time.Time
}
