package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	for _, key := range []string{"HTTP_PORT", "PORT", "DB_PATH", "WORK_DIR", "DROP_DIR", "ENABLE_WATCHER", "WORKER_COUNT",
		"JOB_QUEUE_SIZE", "JOB_TIMEOUT_SEC", "IMAGE_MODEL_PATH", "TEXT_MODEL_DISABLED", "KEYWORDS_PATH",
		"RECONCILE_SCHEDULE", "TIMEZONE", "LOG_MODE", "ALERT_WEBHOOK_URL", "MAX_IMAGE_BYTES", "MAX_TEXT_CHARS", "STRICT_CONFIG"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPPort)
	assert.Equal(t, filepath.Join("runtime", "ecosort.db"), cfg.DBPath)
	assert.EqualValues(t, 10<<20, cfg.MaxImageBytes)
	assert.Equal(t, 1000, cfg.MaxTextChars)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.True(t, cfg.ReconcileEnabled())
	assert.Empty(t, cfg.Warnings)
}

func TestFileThenEnvPrecedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "9100"
db_path: /data/file.db
worker_count: 3
enable_watcher: true
drop_dir: /data/drop
timezone: Europe/Berlin
`), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DB_PATH", "/data/env.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPPort)
	assert.Equal(t, "/data/env.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.True(t, cfg.EnableWatcher)
	assert.Equal(t, "/data/drop", cfg.DropDir)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
}

func TestInvalidValuesFallBack(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("MAX_TEXT_CHARS", "-5")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	t.Setenv("RECONCILE_SCHEDULE", "every day")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, defaultMaxTextChars, cfg.MaxTextChars)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, defaultReconcileSchedule, cfg.ReconcileSchedule)
	assert.Len(t, cfg.Warnings, 4)
}

func TestStrictConfigFails(t *testing.T) {
	isolate(t)
	t.Setenv("STRICT_CONFIG", "true")
	t.Setenv("JOB_TIMEOUT_SEC", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestQueueSizeRespectsWorkers(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_QUEUE_SIZE", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.GreaterOrEqual(t, cfg.JobQueueSize, cfg.WorkerCount)
}

func TestReconcileOff(t *testing.T) {
	isolate(t)
	t.Setenv("RECONCILE_SCHEDULE", "off")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.ReconcileEnabled())
	assert.Equal(t, "off", cfg.ReconcileSchedule)
}
