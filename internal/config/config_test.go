package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mediasnap.sqlite", cfg.DBPath)
	assert.Equal(t, 500, cfg.StageBatchSize)
	assert.Equal(t, 1000, cfg.CollectPageSize)
	assert.Equal(t, int64(3), cfg.StaleAfterVersions)
	assert.True(t, cfg.DeleteRemote)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEDIASNAP_DB_PATH", "  /var/lib/media.sqlite ")
	t.Setenv("MEDIASNAP_COLLECT_PAGE_SIZE", "50")
	t.Setenv("MEDIASNAP_DELETE_REMOTE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/media.sqlite", cfg.DBPath)
	assert.Equal(t, 50, cfg.CollectPageSize)
	assert.False(t, cfg.DeleteRemote)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero batch", "MEDIASNAP_STAGE_BATCH_SIZE", "0"},
		{"negative page", "MEDIASNAP_COLLECT_PAGE_SIZE", "-1"},
		{"zero stale window", "MEDIASNAP_STALE_AFTER_VERSIONS", "0"},
		{"not a number", "MEDIASNAP_STAGE_BATCH_SIZE", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
