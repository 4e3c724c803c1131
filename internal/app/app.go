package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"ecosort/internal/analytics"
	"ecosort/internal/classify/imageclass"
	"ecosort/internal/classify/textclass"
	"ecosort/internal/config"
	"ecosort/internal/events"
	"ecosort/internal/httpapi"
	"ecosort/internal/logger"
	"ecosort/internal/metrics"
	"ecosort/internal/notify"
	"ecosort/internal/pipeline"
	"ecosort/internal/queue"
	"ecosort/internal/recorder"
	"ecosort/internal/store"
	"ecosort/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// Core is the classification service and the store behind it. The server and
// the CLI both build one.
type Core struct {
	Store   *store.Store
	Service *pipeline.Service
	Text    *textclass.Classifier
	Images  *imageclass.Classifier
}

// OpenCore opens the database and builds both classifiers. A keyword file
// that cannot be read fails startup only under StrictConfig.
func OpenCore(cfg config.Config, log *logger.Logger, bus *events.Bus) (*Core, error) {
	log = logger.OrNop(log)
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	st, err := store.Open(cfg.DBPath, store.WithLocation(cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var extra textclass.Keywords
	if cfg.KeywordsPath != "" {
		extra, err = textclass.LoadKeywordFile(cfg.KeywordsPath)
		if err != nil {
			if cfg.StrictConfig {
				st.Close()
				return nil, fmt.Errorf("keyword file: %w", err)
			}
			log.Warn("keyword file ignored", "path", cfg.KeywordsPath, "error", err)
		}
	}

	text := textclass.New(textclass.Options{Logger: log, DisableModel: cfg.TextModelDisabled, Extra: extra})
	images := imageclass.New(imageclass.Options{
		Logger:    log,
		ModelPath: cfg.ImageModelPath,
		OnDegrade: func(strategy string, err error) {
			log.Debug("image strategy failed", "strategy", strategy, "error", err)
		},
	})

	svc := pipeline.New(pipeline.Deps{
		Images:        images,
		Text:          text,
		Recorder:      recorder.New(st),
		Reporter:      analytics.New(st, cfg.Location, log),
		Bus:           bus,
		Logger:        log,
		Location:      cfg.Location,
		MaxImageBytes: cfg.MaxImageBytes,
	})
	log.Info("classifiers ready", "text_model", text.ModelLoaded(), "image_model", images.ModelLoaded())
	return &Core{Store: st, Service: svc, Text: text, Images: images}, nil
}

func (c *Core) Close() error { return c.Store.Close() }

// App wires the service, the drop-folder watcher and the HTTP server.
type App struct {
	cfg     config.Config
	log     *logger.Logger
	core    *Core
	bus     *events.Bus
	metrics *metrics.Collector
	webhook *notify.Webhook
	queue   *queue.Queue
	watcher *watch.Watcher
	handler http.Handler
}

func New(cfg config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	bus := events.NewBus()
	core, err := OpenCore(cfg, log, bus)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:     cfg,
		log:     log.With("component", "app"),
		core:    core,
		bus:     bus,
		metrics: metrics.New(),
		webhook: notify.NewWebhook(cfg.AlertWebhookURL, log),
		queue:   queue.New(cfg.JobQueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second, log),
	}
	if cfg.EnableWatcher {
		a.watcher = watch.New(cfg.DropDir, a.queue, a.classifyDropped, log)
	}
	a.handler = httpapi.NewRouter(httpapi.Deps{
		Service:       core.Service,
		Health:        core.Store,
		History:       core.Store,
		Metrics:       a.metrics,
		Queue:         a.queue,
		Logger:        log,
		MaxImageBytes: cfg.MaxImageBytes,
		MaxTextChars:  cfg.MaxTextChars,
	}).Handler()
	return a, nil
}

func (a *App) classifyDropped(ctx context.Context, path string) error {
	res, err := a.core.Service.ClassifyImageFile(ctx, path)
	if err != nil {
		a.metrics.IncJobFailed()
		return err
	}
	a.metrics.IncJobSucceeded()
	a.log.Info("dropped file classified", "file", filepath.Base(path), "category", res.Prediction.Category, "id", res.ID)
	return nil
}

// Run starts workers, watcher, reconcile schedule and HTTP server, and
// blocks until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	var sched cron.Schedule
	if a.cfg.ReconcileEnabled() {
		var err error
		if sched, err = cron.ParseStandard(a.cfg.ReconcileSchedule); err != nil {
			return fmt.Errorf("reconcile schedule: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	metricsCh := a.bus.Subscribe()
	alertCh := a.bus.Subscribe()
	g.Go(func() error { a.metrics.Run(gctx, metricsCh); return nil })
	g.Go(func() error { a.webhook.Run(gctx, alertCh); return nil })

	a.queue.Start(gctx)
	if a.watcher != nil {
		if err := a.watcher.Start(gctx); err != nil {
			cancel()
			stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			a.queue.Stop(stopCtx)
			stop()
			_ = g.Wait()
			return fmt.Errorf("start watcher: %w", err)
		}
		n, err := a.watcher.Backfill(gctx)
		if err != nil {
			a.log.Warn("drop dir backfill failed", "error", err)
		} else if n > 0 {
			a.log.Info("drop dir backfill queued", "files", n)
		}
	}

	if sched != nil {
		g.Go(func() error { a.reconcileLoop(gctx, sched); return nil })
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		a.log.Info("http listening", "addr", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		a.queue.Stop(shutdownCtx)
		return err
	})

	return g.Wait()
}

func (a *App) reconcileLoop(ctx context.Context, sched cron.Schedule) {
	loc := a.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	for {
		now := time.Now().In(loc)
		next := sched.Next(now)
		a.log.Debug("next reconcile", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		res, err := a.core.Service.Reconcile(ctx)
		if err != nil {
			a.log.Error("reconcile failed", "error", err)
			continue
		}
		a.log.Info("reconcile finished", "days", res.Days, "events", res.Events)
	}
}

// Close releases the store. Call after Run returns.
func (a *App) Close() error {
	a.bus.Close()
	return a.core.Close()
}

func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Service() *pipeline.Service { return a.core.Service }

func (a *App) Metrics() *metrics.Collector { return a.metrics }
