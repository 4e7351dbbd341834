package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mediasnap/engine"
)

// TestEnsureSchema verifies that EnsureSchema is idempotent and that the
// unique constraint allows a single pending row per media id.
func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()
	db, err := engine.Open(engine.MemoryDSN)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db))

	insert := `INSERT INTO media_snapshot(media_id, cdn, plaintext_hash, remote_key, snapshot_version, is_pending) VALUES(?, 1, X'01', X'02', ?, ?)`
	_, err = db.Exec(insert, "m1", 0, true)
	require.NoError(t, err)
	_, err = db.Exec(insert, "m1", 0, true)
	assert.Error(t, err, "second pending row for the same media id must be rejected")

	_, err = db.Exec(insert, "m1", 1, false)
	assert.NoError(t, err, "committed generations may coexist with a pending row")

	assert.ErrorIs(t, EnsureSchema(ctx, nil), ErrNilDB)
}
