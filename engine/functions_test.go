package engine

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mediasnap/mediaid"
)

func TestRegisterMediaFunctionsAndUse(t *testing.T) {
	// Register before the first connection so the functions are visible.
	RegisterMediaFunctions()
	RegisterMediaFunctions()

	db, err := Open(MemoryDSN)
	require.NoError(t, err)
	defer db.Close()

	hash := []byte{0x01, 0x02, 0x03}
	key := []byte{0xaa, 0xbb}
	backup := []byte("backup-key")

	var name string
	require.NoError(t, db.QueryRow(`SELECT media_name(?, ?, 1)`, hash, key).Scan(&name))
	want, err := mediaid.MediaName(hash, key, true)
	require.NoError(t, err)
	assert.Equal(t, want, name)

	var id string
	require.NoError(t, db.QueryRow(`SELECT media_id(?, ?, ?, 0)`, backup, hash, key).Scan(&id))
	d, err := mediaid.NewDeriver(backup)
	require.NoError(t, err)
	wantID, err := d.MediaID(hash, key, false)
	require.NoError(t, err)
	assert.Equal(t, wantID, id)

	var missing sql.NullString
	require.NoError(t, db.QueryRow(`SELECT media_name(NULL, ?, 0)`, key).Scan(&missing))
	assert.False(t, missing.Valid)

	var bad sql.NullString
	err = db.QueryRow(`SELECT media_name(?, ?, 'yes')`, hash, key).Scan(&bad)
	assert.Error(t, err)
}
