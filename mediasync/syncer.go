package mediasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/viant/mediasnap/internal/metrics"
	"github.com/viant/mediasnap/snapshot"
)

// ErrNoProgress is returned when collection keeps seeing the same page.
var ErrNoProgress = errors.New("mediasync: collector made no progress")

// Syncer runs sync cycles. A Syncer is the single logical writer of its
// store; RunCycle must not be called concurrently on the same store.
type Syncer struct {
	store   snapshot.Store
	local   LocalEnumerator
	remote  RemoteLister
	deleter RemoteDeleter
	history *History
	cfg     Config
	log     zerolog.Logger
}

// Option configures a Syncer.
type Option func(s *Syncer)

// WithConfig overrides DefaultConfig. Non-positive sizes keep the defaults.
func WithConfig(cfg Config) Option {
	return func(s *Syncer) {
		def := DefaultConfig()
		if cfg.StageBatchSize <= 0 {
			cfg.StageBatchSize = def.StageBatchSize
		}
		if cfg.CollectPageSize <= 0 {
			cfg.CollectPageSize = def.CollectPageSize
		}
		if cfg.StaleAfterVersions <= 0 {
			cfg.StaleAfterVersions = def.StaleAfterVersions
		}
		s.cfg = cfg
	}
}

// WithRemoteDeleter enables remote deletion of orphaned objects.
func WithRemoteDeleter(d RemoteDeleter) Option {
	return func(s *Syncer) { s.deleter = d }
}

// WithHistory records every finished cycle.
func WithHistory(h *History) Option {
	return func(s *Syncer) { s.history = h }
}

// WithLogger sets the cycle logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Syncer) { s.log = log }
}

// New creates a Syncer over store and the two inventory sources.
func New(store snapshot.Store, local LocalEnumerator, remote RemoteLister, opts ...Option) (*Syncer, error) {
	if store == nil {
		return nil, fmt.Errorf("mediasync: store is nil")
	}
	if local == nil || remote == nil {
		return nil, fmt.Errorf("mediasync: local enumerator and remote lister are required")
	}
	s := &Syncer{
		store:  store,
		local:  local,
		remote: remote,
		cfg:    DefaultConfig(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunCycle performs one full cycle. When enumeration fails nothing is
// committed; staged rows stay pending and are overwritten by the next cycle.
func (s *Syncer) RunCycle(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{RunID: ulid.Make().String()}
	log := s.log.With().Str("run_id", report.RunID).Logger()

	err := s.runCycle(ctx, log, &report)
	report.Duration = time.Since(start)
	if err != nil {
		metrics.RecordCycle("error", report.Duration.Seconds())
		log.Error().Err(err).Msg("sync cycle failed")
		return report, err
	}
	metrics.RecordCycle("ok", report.Duration.Seconds())
	metrics.RecordDrift("cdn_mismatch", len(report.CdnMismatches))
	metrics.RecordDrift("not_found", len(report.NotFound))
	metrics.RecordDrift("stale", len(report.Stale))

	if s.history != nil {
		if err := s.history.Record(ctx, report, time.Now()); err != nil {
			return report, err
		}
	}
	log.Info().
		Int64("version", report.Version).
		Int("staged", report.Staged).
		Int("cdn_mismatches", len(report.CdnMismatches)).
		Int("not_found", len(report.NotFound)).
		Int("marked_seen", report.MarkedSeen).
		Int("collected", report.Collected).
		Int("stale", len(report.Stale)).
		Dur("duration", report.Duration).
		Msg("sync cycle finished")
	return report, nil
}

func (s *Syncer) runCycle(ctx context.Context, log zerolog.Logger, report *Report) error {
	entries, err := s.local.EnumerateLocalMedia(ctx)
	if err != nil {
		return fmt.Errorf("mediasync: enumerate local media: %w", err)
	}
	for start := 0; start < len(entries); start += s.cfg.StageBatchSize {
		end := min(start+s.cfg.StageBatchSize, len(entries))
		if err := s.store.WritePendingMediaEntries(ctx, entries[start:end]); err != nil {
			return fmt.Errorf("mediasync: stage: %w", err)
		}
		report.Staged = end
	}
	log.Debug().Int("staged", report.Staged).Msg("local inventory staged")

	version, err := s.store.CommitPendingRows(ctx)
	if err != nil {
		return fmt.Errorf("mediasync: commit: %w", err)
	}
	report.Version = version

	refs, err := s.remote.ListRemoteMedia(ctx)
	if err != nil {
		return fmt.Errorf("mediasync: list remote media: %w", err)
	}
	report.RemoteListed = len(refs)
	var confirmed []string
	if len(refs) == 0 {
		log.Warn().Int64("version", version).Msg("remote listing is empty, skipping reconciliation")
	} else if confirmed, err = s.reconcile(ctx, refs, report); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.TrackPresence(ctx, version, confirmed); err != nil {
			return err
		}
	}

	if err := s.collect(ctx, log, report); err != nil {
		return err
	}

	stale, err := s.stale(ctx, version)
	if err != nil {
		return fmt.Errorf("mediasync: stale media: %w", err)
	}
	report.Stale = stale
	return nil
}

// stale returns current entries the remote listing has not confirmed for
// StaleAfterVersions consecutive versions. Streaks spanning generations
// need the History; without one only entries unconfirmed in version are
// candidates, which matches a threshold of one version.
func (s *Syncer) stale(ctx context.Context, version int64) ([]snapshot.MediaEntry, error) {
	if version == snapshot.UnknownVersion {
		return nil, nil
	}
	candidates, err := s.store.MediaObjectsLastSeenOnCdnBefore(ctx, version)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		return s.history.Unconfirmed(ctx, candidates, version, s.cfg.StaleAfterVersions)
	}
	if s.cfg.StaleAfterVersions == 1 {
		return candidates, nil
	}
	return nil, nil
}

// reconcile runs both drift queries in parallel, then confirms every ref
// that matched a current entry on both id and cdn and returns their ids.
func (s *Syncer) reconcile(ctx context.Context, refs []snapshot.RemoteMediaRef, report *Report) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mismatched, err := s.store.MediaObjectsWithNonMatchingCdn(gctx, refs)
		if err != nil {
			return fmt.Errorf("mediasync: cdn mismatch: %w", err)
		}
		report.CdnMismatches = mismatched
		return nil
	})
	g.Go(func() error {
		missing, err := s.store.MediaObjectsThatCantBeFound(gctx, refs)
		if err != nil {
			return fmt.Errorf("mediasync: cant be found: %w", err)
		}
		report.NotFound = missing
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if report.Version == snapshot.UnknownVersion {
		return nil, nil
	}

	skip := make(map[string]struct{}, len(report.CdnMismatches)+len(report.NotFound))
	for _, e := range report.CdnMismatches {
		skip[e.MediaID] = struct{}{}
	}
	for _, ref := range report.NotFound {
		skip[ref.MediaID] = struct{}{}
	}
	seen := make([]string, 0, len(refs))
	marked := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := skip[ref.MediaID]; ok {
			continue
		}
		if _, ok := marked[ref.MediaID]; ok {
			continue
		}
		marked[ref.MediaID] = struct{}{}
		seen = append(seen, ref.MediaID)
	}
	if err := s.store.MarkSeenOnRemote(ctx, seen, report.Version); err != nil {
		return nil, fmt.Errorf("mediasync: mark seen: %w", err)
	}
	report.MarkedSeen = len(seen)
	return seen, nil
}

// collect pages through superseded rows. Remote deletion only targets rows
// whose media id left the current snapshot, once per media id and cycle;
// local rows are deleted after the remote side succeeded.
func (s *Syncer) collect(ctx context.Context, log zerolog.Logger, report *Report) error {
	var lastHead *snapshot.MediaEntry
	sent := make(map[string]struct{})
	for {
		page, err := s.store.PageOfOldMediaObjects(ctx, s.cfg.CollectPageSize)
		if err != nil {
			return fmt.Errorf("mediasync: collect: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		if lastHead != nil && lastHead.MediaID == page[0].MediaID && lastHead.SnapshotVersion == page[0].SnapshotVersion {
			return ErrNoProgress
		}
		lastHead = &page[0]

		var orphans []snapshot.MediaEntry
		for _, e := range page {
			if e.RetainedInCurrent {
				continue
			}
			if _, ok := sent[e.MediaID]; ok {
				continue
			}
			sent[e.MediaID] = struct{}{}
			orphans = append(orphans, e)
		}
		if s.deleter != nil && s.cfg.DeleteRemote && len(orphans) > 0 {
			if err := s.deleter.DeleteRemoteMedia(ctx, orphans); err != nil {
				return fmt.Errorf("mediasync: delete remote media: %w", err)
			}
			report.RemoteDeleted += len(orphans)
		}
		if err := s.store.DeleteOldMediaObjects(ctx, page); err != nil {
			return fmt.Errorf("mediasync: collect: %w", err)
		}
		report.Collected += len(page)
		log.Debug().Int("page", len(page)).Int("orphans", len(orphans)).Msg("superseded media collected")
	}
}
