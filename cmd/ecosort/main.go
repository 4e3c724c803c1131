package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ecosort/internal/app"
	"ecosort/internal/config"
	"ecosort/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("init failed", "error", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}
