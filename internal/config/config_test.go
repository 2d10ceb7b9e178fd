package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadLocalSkipsJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "")
	cfg, err := LoadLocal()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PORT", "")
	t.Setenv("LEDGER_KEY_PATH", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "3210", cfg.Port)
	assert.Equal(t, ".eck/fiscal_identity.json", cfg.Ledger.KeyPath)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadSyncConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	body := `
enabled: true
auto_sync_interval: 30
sync_timeout: 5
prefer_cloud: true
collections:
  dashboard:
    enabled: false
routes:
  - url: http://cloud.local
    type: primary
    timeout: 3
    priority: 1
lock:
  backend: redis
  redis_address: 127.0.0.1:6380
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("SYNC_CONFIG_PATH", path)

	cfg, err := LoadSyncConfig()
	require.NoError(t, err)

	assert.True(t, cfg.PreferCloud)
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.False(t, cfg.CollectionEnabled(CollectionDashboard))
	assert.True(t, cfg.CollectionEnabled(CollectionMenu), "defaults survive a partial file")
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "http://cloud.local", cfg.Routes[0].URL)
	assert.Equal(t, "redis", cfg.Lock.Backend)
}

func TestLoadSyncConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sync_timeout": 0, "audit_tail_size": 10}`), 0o600))

	cfg, err := LoadSyncConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Timeout())
	assert.Equal(t, 10, cfg.AuditTailSize)
}

func TestLoadSyncConfigBadFile(t *testing.T) {
	t.Setenv("SYNC_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	_, err := LoadSyncConfig()
	require.Error(t, err)
}
