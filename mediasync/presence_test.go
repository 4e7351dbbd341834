package mediasync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mediasnap/snapshot"
)

func commitGeneration(t *testing.T, f *fixture, ids ...string) int64 {
	t.Helper()
	ctx := context.Background()
	var entries []snapshot.MediaEntry
	for _, id := range ids {
		entries = append(entries, media(id, 1))
	}
	require.NoError(t, f.store.WritePendingMediaEntries(ctx, entries))
	v, err := f.store.CommitPendingRows(ctx)
	require.NoError(t, err)
	return v
}

func TestPresenceForgetsMediaThatLeftTheSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v := commitGeneration(t, f, "a", "b")
	require.NoError(t, f.history.TrackPresence(ctx, v, []string{"a", "b"}))
	v = commitGeneration(t, f, "a")
	require.NoError(t, f.history.TrackPresence(ctx, v, []string{"a"}))
	v = commitGeneration(t, f, "a", "b")
	require.NoError(t, f.history.TrackPresence(ctx, v, []string{"a"}))
	assert.Equal(t, int64(3), v)

	candidates := []snapshot.MediaEntry{media("a", 1), media("b", 1)}
	got, err := f.history.Unconfirmed(ctx, candidates, v, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	// b came back in version 3, so its streak starts at 2 rather than 1.
	got, err = f.history.Unconfirmed(ctx, candidates, v, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnconfirmedTreatsUntrackedMediaAsNew(t *testing.T) {
	f := newFixture(t)
	got, err := f.history.Unconfirmed(context.Background(), []snapshot.MediaEntry{media("x", 1)}, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids(got))

	got, err = f.history.Unconfirmed(context.Background(), []snapshot.MediaEntry{media("x", 1)}, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}
