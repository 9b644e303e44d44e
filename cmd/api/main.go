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
	"linksaver/internal/domain"
	linkhttp "linksaver/internal/http"
	"linksaver/internal/http/handlers"
	"linksaver/internal/pkg/logger"
	"linksaver/internal/repository/postgres"
	"linksaver/internal/repository/redis"
	"linksaver/internal/service/auth"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Validate API-specific configuration
	if err := cfg.ValidateForAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting API service...")

	if cfg.UsingDevSecret() {
		log.Warn("JWT_SECRET not set - signing sessions with the development secret")
		log.Warn("Set JWT_SECRET before exposing this service")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := app.New(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("Failed to initialise dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	authService := auth.NewService(log, deps.Users, cfg.SessionSecret())

	checks := map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) (any, error) {
			version, err := postgres.GetMigrationStatus(ctx, deps.DB)
			if err != nil {
				return nil, err
			}
			return map[string]int{"schema_version": version}, nil
		},
		"redis": func(ctx context.Context) (any, error) {
			if err := redis.HealthCheck(ctx, deps.Redis); err != nil {
				return nil, err
			}
			stats := make(map[string]*redis.QueueStats, len(domain.JobTypes))
			for _, jobType := range domain.JobTypes {
				s, err := deps.Queue.GetQueueStats(ctx, jobType)
				if err != nil {
					return nil, err
				}
				stats[jobType] = s
			}
			return stats, nil
		},
	}

	router := linkhttp.NewRouter(log, authService, deps.Bookmarks, checks, linkhttp.Options{
		CookieSecure:     cfg.CookieSecure,
		AllowedOrigin:    cfg.AllowedOrigin,
		AddRatePerMinute: cfg.AddRatePerMinute,
	})
	server := linkhttp.NewServer(log, cfg.Port, router.Handler())

	// Create a channel to track shutdown completion
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := server.Start(); err != nil {
			log.Error("API service failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for either shutdown signal or service completion
	select {
	case <-quit:
		log.Info("Shutdown signal received, stopping API service...")
	case <-done:
		log.Info("API service completed")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Error("Error stopping API service", "error", err)
	}

	log.Info("API service shutdown complete")
}
