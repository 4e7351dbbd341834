package mediaadmin

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mediasnap/engine"
	"github.com/viant/mediasnap/snapshot"
)

// setup returns a handle opened after Register, so every pooled connection
// carries the module, together with the store it serves.
func setup(t *testing.T) (*sql.DB, *snapshot.SQLiteStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "media_admin.sqlite")
	storeDB, err := engine.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeDB.Close() })

	store, err := snapshot.NewSQLiteStore(storeDB)
	require.NoError(t, err)
	require.NoError(t, Register(storeDB, store))

	db, err := engine.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE VIRTUAL TABLE media_admin USING media_admin(name, value)`)
	require.NoError(t, err)
	return db, store
}

func generation(t *testing.T, store *snapshot.SQLiteStore, prefix string, n int) {
	t.Helper()
	ctx := context.Background()
	var entries []snapshot.MediaEntry
	for i := 0; i < n; i++ {
		entries = append(entries, snapshot.MediaEntry{
			MediaID:       fmt.Sprintf("%s%d", prefix, i),
			Cdn:           1,
			PlaintextHash: []byte{byte(i)},
			RemoteKey:     []byte{byte(i)},
			IsThumbnail:   i%2 == 1,
		})
	}
	require.NoError(t, store.WritePendingMediaEntries(ctx, entries))
	_, err := store.CommitPendingRows(ctx)
	require.NoError(t, err)
}

func TestMediaAdminStats(t *testing.T) {
	db, store := setup(t)
	generation(t, store, "a", 4)
	generation(t, store, "b", 3)

	rows, err := db.Query(`SELECT name, value FROM media_admin`)
	require.NoError(t, err)
	defer rows.Close()

	got := map[string]int64{}
	for rows.Next() {
		var name string
		var value int64
		require.NoError(t, rows.Scan(&name, &value))
		got[name] = value
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, int64(2), got["version"])
	assert.Equal(t, int64(3), got["current"])
	assert.Equal(t, int64(2), got["current_full_size"])
	assert.Equal(t, int64(1), got["current_thumbnails"])
	assert.Equal(t, int64(4), got["superseded"])
	assert.Equal(t, int64(7), got["total"])
	assert.Equal(t, int64(0), got["pending"])
}

func TestMediaAdminCollect(t *testing.T) {
	db, store := setup(t)
	generation(t, store, "a", 5)
	generation(t, store, "b", 2)

	var collected int64
	require.NoError(t, db.QueryRow(`SELECT value FROM media_admin WHERE name MATCH 'collect:3'`).Scan(&collected))
	assert.Equal(t, int64(3), collected)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Superseded)

	require.NoError(t, db.QueryRow(`SELECT value FROM media_admin WHERE name MATCH 'collect'`).Scan(&collected))
	assert.Equal(t, int64(2), collected)
	require.NoError(t, db.QueryRow(`SELECT value FROM media_admin WHERE name MATCH 'collect'`).Scan(&collected))
	assert.Equal(t, int64(0), collected)
}

func TestMediaAdminVersion(t *testing.T) {
	db, store := setup(t)
	generation(t, store, "a", 1)
	generation(t, store, "b", 1)
	generation(t, store, "c", 1)

	var name string
	var version int64
	require.NoError(t, db.QueryRow(`SELECT name, value FROM media_admin WHERE name MATCH 'version'`).Scan(&name, &version))
	assert.Equal(t, "version", name)
	assert.Equal(t, int64(3), version)
}

func TestMediaAdminFollowsLatestStore(t *testing.T) {
	_, earlier := setup(t)
	generation(t, earlier, "a", 1)
	generation(t, earlier, "b", 1)

	db, store := setup(t)
	generation(t, store, "c", 2)

	var version int64
	require.NoError(t, db.QueryRow(`SELECT value FROM media_admin WHERE name MATCH 'version'`).Scan(&version))
	assert.Equal(t, int64(1), version)
}

func TestMediaAdminUnknownOperation(t *testing.T) {
	db, _ := setup(t)
	var v int64
	err := db.QueryRow(`SELECT value FROM media_admin WHERE name MATCH 'rebuild'`).Scan(&v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operation")
}

func TestRegisterRequiresStore(t *testing.T) {
	db, err := engine.Open(filepath.Join(t.TempDir(), "nostore.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	assert.Error(t, Register(db, nil))
}

func TestRegisterRejectsMemoryDatabase(t *testing.T) {
	db, err := engine.Open(engine.MemoryDSN)
	require.NoError(t, err)
	defer db.Close()
	store, err := snapshot.NewSQLiteStore(db)
	require.NoError(t, err)
	assert.ErrorIs(t, Register(db, store), ErrMemoryDatabase)
}
