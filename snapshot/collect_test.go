package snapshot

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mediasnap/internal/metrics"
)

func drainOldMediaObjects(t *testing.T, s *SQLiteStore, pageSize int) int {
	t.Helper()
	ctx := context.Background()
	total := 0
	for {
		page, err := s.PageOfOldMediaObjects(ctx, pageSize)
		require.NoError(t, err)
		if len(page) == 0 {
			return total
		}
		require.NoError(t, s.DeleteOldMediaObjects(ctx, page))
		total += len(page)
	}
}

func TestCommitSupersedesNeverDeletes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stageAndCommit(t, s, makeEntries(t, "a", 100, false))
	v := stageAndCommit(t, s, makeEntries(t, "b", 25, false))
	assert.Equal(t, int64(2), v)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, st.Current)
	assert.Equal(t, 100, st.Superseded)
	assert.Equal(t, 125, st.Total)

	assert.Equal(t, 100, drainOldMediaObjects(t, s, 30))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, st.Total)
	assert.Equal(t, 25, st.Current)
	assert.Equal(t, int64(2), st.Version)
}

func TestPageOfOldMediaObjectsIsStable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	stageAndCommit(t, s, makeEntries(t, "a", 30, false))
	stageAndCommit(t, s, makeEntries(t, "b", 1, false))

	first, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first, 10)

	again, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, first, again, "paging without deletion must repeat the same page")

	require.NoError(t, s.DeleteOldMediaObjects(ctx, first))
	next, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	require.Len(t, next, 10)
	for _, e := range next {
		for _, prev := range first {
			assert.NotEqual(t, prev.MediaID, e.MediaID)
		}
	}
}

func TestPageOfOldMediaObjectsExcludesCurrentAndPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	page, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	stageAndCommit(t, s, makeEntries(t, "a", 5, false))
	require.NoError(t, s.WritePendingMediaEntries(ctx, makeEntries(t, "b", 5, false)))

	page, err = s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = s.PageOfOldMediaObjects(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPageMarksEntriesRetainedInCurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	stageAndCommit(t, s, []MediaEntry{entry("a", 1), entry("b", 1)})
	stageAndCommit(t, s, []MediaEntry{entry("b", 1), entry("c", 1)})

	page, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)

	byID := map[string]MediaEntry{}
	for _, e := range page {
		byID[e.MediaID] = e
		assert.Equal(t, int64(1), e.SnapshotVersion)
	}
	assert.False(t, byID["a"].RetainedInCurrent)
	assert.True(t, byID["b"].RetainedInCurrent)

	require.NoError(t, s.DeleteOldMediaObjects(ctx, page))

	missing, err := s.MediaObjectsThatCantBeFound(ctx, []RemoteMediaRef{{MediaID: "b", Cdn: 1}})
	require.NoError(t, err)
	assert.Empty(t, missing, "deleting the superseded row keeps the current one")
}

func TestDeleteOldMediaObjectsSkipsIneligibleRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	stageAndCommit(t, s, []MediaEntry{entry("a", 1)})
	stageAndCommit(t, s, []MediaEntry{entry("b", 1)})
	require.NoError(t, s.WritePendingMediaEntries(ctx, []MediaEntry{entry("p", 1)}))

	page, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)

	require.NoError(t, s.DeleteOldMediaObjects(ctx, page))
	require.NoError(t, s.DeleteOldMediaObjects(ctx, page), "retrying a delete is a no-op")

	err = s.DeleteOldMediaObjects(ctx, []MediaEntry{
		{MediaID: "b", SnapshotVersion: 2},
		{MediaID: "p", SnapshotVersion: UnknownVersion},
		{MediaID: "never-existed", SnapshotVersion: 1},
	})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 2, st.Total)
}

func TestWatermarkStaleness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	full := makeEntries(t, "a", 100, false)
	thumbs := makeEntries(t, "a", 100, true)
	v := stageAndCommit(t, s, full, thumbs)
	require.Equal(t, int64(1), v)

	var seen []string
	for i := 0; i < 25; i++ {
		seen = append(seen, full[i].MediaID, thumbs[i].MediaID)
	}
	require.NoError(t, s.MarkSeenOnRemote(ctx, seen, 1))

	stale, err := s.MediaObjectsLastSeenOnCdnBefore(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stale, (100-25)*2)
	for _, e := range stale {
		assert.Equal(t, int64(0), e.LastSeenVersion)
		assert.Equal(t, int64(1), e.SnapshotVersion)
	}

	all, err := s.MediaObjectsLastSeenOnCdnBefore(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, all, 200)
}

func TestMarkSeenOnlyTouchesCurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.MarkSeenOnRemote(ctx, []string{"a"}, 1), "marking before any commit is a no-op")

	stageAndCommit(t, s, []MediaEntry{entry("a", 1), entry("b", 1)})
	stageAndCommit(t, s, []MediaEntry{entry("b", 1)})
	require.NoError(t, s.WritePendingMediaEntries(ctx, []MediaEntry{entry("a", 1)}))

	require.NoError(t, s.MarkSeenOnRemote(ctx, []string{"a", "b"}, 2))

	page, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	for _, e := range page {
		assert.Equal(t, int64(0), e.LastSeenVersion, "superseded rows keep their watermark")
	}

	stale, err := s.MediaObjectsLastSeenOnCdnBefore(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, stale)

	assert.ErrorIs(t, s.MarkSeenOnRemote(ctx, []string{"b"}, -1), ErrInvalidVersion)
}

func TestWatermarkResetsOnRegeneration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stageAndCommit(t, s, []MediaEntry{entry("a", 1)})
	require.NoError(t, s.MarkSeenOnRemote(ctx, []string{"a"}, 1))

	v := stageAndCommit(t, s, []MediaEntry{entry("a", 1)})
	require.Equal(t, int64(2), v)

	stale, err := s.MediaObjectsLastSeenOnCdnBefore(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "a", stale[0].MediaID)
	assert.Equal(t, int64(0), stale[0].LastSeenVersion)
}

func TestDeleteOldMediaObjectsCountsAffectedRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	stageAndCommit(t, s, []MediaEntry{entry("a", 1), entry("b", 1)})
	stageAndCommit(t, s, []MediaEntry{entry("c", 1)})

	page, err := s.PageOfOldMediaObjects(ctx, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)

	before := testutil.ToFloat64(metrics.CollectedRowsTotal)
	require.NoError(t, s.DeleteOldMediaObjects(ctx, page))
	require.NoError(t, s.DeleteOldMediaObjects(ctx, page))
	require.NoError(t, s.DeleteOldMediaObjects(ctx, []MediaEntry{{MediaID: "c", SnapshotVersion: 2}}))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CollectedRowsTotal)-before)
}
