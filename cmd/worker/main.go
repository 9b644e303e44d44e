package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linksaver/internal/app"
	"linksaver/internal/config"
	"linksaver/internal/pkg/logger"
	"linksaver/internal/service/worker"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Validate worker-specific configuration
	if err := cfg.ValidateForWorker(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting worker service...")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := app.New(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("Failed to initialise dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	// Discord notifications are optional
	var notifier worker.Notifier
	if cfg.DiscordToken != "" {
		discord, err := worker.NewDiscordNotifier(log, cfg.DiscordToken, cfg.DiscordNotifyChannel)
		if err != nil {
			log.Warn("Failed to create Discord notifier, notifications disabled", "error", err)
		} else {
			defer discord.Close()
			notifier = discord
		}
	}

	processor := worker.NewJobProcessor(log, deps.Bookmarks, notifier)
	workerService, err := worker.New(log, deps.Queue, processor, deps.Bookmarks, worker.Options{
		PollInterval:    cfg.PollInterval,
		RefreshSchedule: cfg.RefreshSchedule,
		RefreshAfter:    cfg.RefreshAfter,
	})
	if err != nil {
		log.Error("Failed to create worker service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerService.Run(ctx); err != nil {
		log.Error("Worker service failed", "error", err)
	}

	stats := workerService.GetStats()
	log.Info("Worker service shutdown complete",
		"jobs_processed", stats.JobsProcessed,
		"jobs_failed", stats.JobsFailed,
	)
}
