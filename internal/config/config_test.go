package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KRIKRI_CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "krikri.db", cfg.DB.Path)
	assert.Equal(t, 60*time.Second, cfg.Harvest.Timeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krikri.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
db:
  path: /var/lib/krikri/store.db
redis:
  url: redis://queue:6379/2
harvest:
  timeout: 10s
  rate_limit: 2.5
worker:
  queues: [harvestagent, enrichmentagent]
`), 0o644))

	t.Setenv("KRIKRI_CONFIG_PATH", path)
	t.Setenv("KRIKRI_SERVER_PORT", "9100")
	t.Setenv("KRIKRI_TRACING_ENABLED", "true")
	t.Setenv("KRIKRI_ENRICHMENT_FAILURE_POLICY", "record")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/var/lib/krikri/store.db", cfg.DB.Path)
	assert.Equal(t, "redis://queue:6379/2", cfg.Redis.URL)
	assert.Equal(t, 10*time.Second, cfg.Harvest.Timeout)
	assert.Equal(t, 2.5, cfg.Harvest.RateLimit)
	assert.Equal(t, "krikri/1.0", cfg.Harvest.UserAgent)
	assert.Equal(t, []string{"harvestagent", "enrichmentagent"}, cfg.Worker.Queues)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "record", cfg.Enrichment.FailurePolicy)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("KRIKRI_CONFIG_PATH", "")
	t.Setenv("KRIKRI_SERVER_PORT", "eighty")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("KRIKRI_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
