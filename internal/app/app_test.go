package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecosort/internal/config"
	"ecosort/internal/queue"
	"ecosort/internal/watch"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTPPort:          "127.0.0.1:0",
		DBPath:            filepath.Join(dir, "db", "ecosort.db"),
		DropDir:           filepath.Join(dir, "drop"),
		WorkerCount:       1,
		JobQueueSize:      4,
		JobTimeoutSec:     5,
		ReconcileSchedule: "off",
		Location:          time.UTC,
		MaxImageBytes:     1 << 20,
		MaxTextChars:      1000,
	}
}

func TestOpenCoreLoadsKeywordFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeywordsPath = filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(cfg.KeywordsPath, []byte("recyclable:\n  - tetra pack\n"), 0o644))

	core, err := OpenCore(cfg, nil, nil)
	require.NoError(t, err)
	defer core.Close()

	words, err := core.Service.Keywords("recyclable")
	require.NoError(t, err)
	assert.Contains(t, words, "tetra pack")
}

func TestOpenCoreStrictKeywordFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.StrictConfig = true
	cfg.KeywordsPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := OpenCore(cfg, nil, nil)
	assert.Error(t, err)
}

func TestHandlerServesClassification(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	req := httptest.NewRequest(http.MethodPost, "/classify/text", strings.NewReader(`{"text":"plastic bottle"}`))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"recyclable"`)
}

func TestRunProcessesDropDirAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableWatcher = true
	require.NoError(t, os.MkdirAll(cfg.DropDir, 0o755))

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{G: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DropDir, "leaf.png"), buf.Bytes(), 0o644))

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	processed := filepath.Join(cfg.DropDir, watch.ProcessedDir, "leaf.png")
	require.Eventually(t, func() bool {
		_, err := os.Stat(processed)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	rep, err := a.Service().Analytics(context.Background(), a.Service().Today(), a.Service().Today())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalClassifications)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func runWithDeadline(t *testing.T, a *App) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunStopsWorkersWhenWatcherFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableWatcher = true
	require.NoError(t, os.WriteFile(cfg.DropDir, []byte("not a directory"), 0o644))

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	err = runWithDeadline(t, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start watcher")
	assert.False(t, a.queue.Enqueue(queue.Job{ID: "late", Work: func(context.Context) error { return nil }}))
}

func TestRunRejectsBadReconcileSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReconcileSchedule = "not a cron"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	err = runWithDeadline(t, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile schedule")
	assert.False(t, a.queue.Enqueue(queue.Job{ID: "late", Work: func(context.Context) error { return nil }}))
}
