package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ecosort/internal/classify/imageclass"
	"ecosort/internal/logger"
	"ecosort/internal/queue"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Handler classifies one dropped file.
type Handler func(ctx context.Context, path string) error

type Enqueuer interface {
	EnqueueWithRetry(ctx context.Context, j queue.Job, window, interval time.Duration) (bool, bool)
}

// Watcher monitors a drop directory for new images and queues a job per file.
// Finished files are moved into processed/ or failed/ below the directory.
type Watcher struct {
	dir     string
	queue   Enqueuer
	handle  Handler
	log     *logger.Logger
	settle  time.Duration
	pending sync.Map
}

func New(dir string, q Enqueuer, handle Handler, log *logger.Logger) *Watcher {
	return &Watcher{
		dir:    dir,
		queue:  q,
		handle: handle,
		log:    logger.OrNop(log).With("component", "watch", "dir", dir),
		settle: 200 * time.Millisecond,
	}
}

// Start begins watching and returns once the watch is registered. Events are
// handled until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return err
		}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) != 0 {
					w.submit(ctx, evt.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watcher error", "error", err)
			}
		}
	}()
	w.log.Info("watching drop directory")
	return nil
}

// Backfill queues files already present in the drop directory.
func (w *Watcher) Backfill(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if w.submit(ctx, filepath.Join(w.dir, e.Name())) {
			n++
		}
	}
	return n, nil
}

func (w *Watcher) submit(ctx context.Context, path string) bool {
	if !imageclass.Supported(path) {
		return false
	}
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	if _, loaded := w.pending.LoadOrStore(path, struct{}{}); loaded {
		return false
	}
	job := queue.Job{
		ID:     filepath.Base(path),
		Source: "watch",
		Work: func(jobCtx context.Context) error {
			if w.settle > 0 {
				select {
				case <-time.After(w.settle):
				case <-jobCtx.Done():
					return jobCtx.Err()
				}
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("dropped file vanished: %w", err)
			}
			return w.handle(jobCtx, path)
		},
		OnFinish: func(err error) {
			defer w.pending.Delete(path)
			w.finish(path, err)
		},
	}
	ok, dropped := w.queue.EnqueueWithRetry(ctx, job, 2*time.Second, 100*time.Millisecond)
	if !ok {
		w.pending.Delete(path)
		w.log.Warn("could not queue dropped file", "file", path, "queue_full", dropped)
	}
	return ok
}

func (w *Watcher) finish(path string, err error) {
	dest := ProcessedDir
	if err != nil {
		dest = FailedDir
		w.log.Warn("dropped file failed", "file", path, "error", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return
	}
	target := filepath.Join(w.dir, dest, filepath.Base(path))
	if renameErr := os.Rename(path, target); renameErr != nil {
		w.log.Warn("could not move dropped file", "file", path, "target", target, "error", renameErr)
	}
}
