// Package app wires the shared dependencies of the api and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"linksaver/internal/config"
	"linksaver/internal/domain"
	"linksaver/internal/repository/postgres"
	"linksaver/internal/repository/redis"
	"linksaver/internal/service/bookmarks"
	"linksaver/internal/service/metadata"
)

// dequeueBlock is how long a worker Dequeue waits for a job
const dequeueBlock = time.Second

// App holds the connections and services shared by both binaries
type App struct {
	DB        *sql.DB
	Redis     *goredis.Client
	Queue     *redis.QueueRepository
	Users     *postgres.UserRepository
	Bookmarks *bookmarks.Service
	Extractor *metadata.Extractor

	renderer *metadata.RodRenderer
}

// New connects to Postgres and Redis, runs migrations and builds the services
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := postgres.RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		DB:    db,
		Redis: redisClient,
		Queue: redis.NewQueueRepository(redisClient, logger, dequeueBlock),
		Users: postgres.NewUserRepository(db, logger),
	}

	a.Extractor = a.newExtractor(cfg, logger)

	var cache domain.MetadataCache
	if cfg.MetadataCacheTTL > 0 {
		cache = redis.NewMetadataCache(redisClient, logger, cfg.MetadataCacheTTL)
	}
	a.Bookmarks = bookmarks.NewService(
		logger,
		postgres.NewBookmarkRepository(db, logger),
		cache,
		a.Queue,
		a.Extractor,
	)

	return a, nil
}

func (a *App) newExtractor(cfg *config.Config, logger *slog.Logger) *metadata.Extractor {
	opts := []metadata.Option{
		metadata.WithHTTPClient(metadata.NewHTTPClient(cfg.BlockPrivateNetworks)),
		metadata.WithTimeouts(cfg.PageTimeout, cfg.ProbeTimeout, cfg.SummaryTimeout),
	}

	if cfg.LocalReader {
		opts = append(opts, metadata.WithReader(metadata.LocalReader{}))
	} else {
		opts = append(opts, metadata.WithReader(
			metadata.NewRemoteReader(cfg.ReaderBaseURL, cfg.ReaderAPIKey, &http.Client{}),
		))
	}

	if cfg.BrowserFallback {
		a.renderer = metadata.NewRodRenderer(logger)
		opts = append(opts, metadata.WithRenderer(a.renderer))
	}

	logger.Info("Metadata extractor configured",
		"local_reader", cfg.LocalReader,
		"browser_fallback", cfg.BrowserFallback,
		"block_private_networks", cfg.BlockPrivateNetworks,
	)
	return metadata.NewExtractor(logger, opts...)
}

// Close releases every connection
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	a.Redis.Close()
	a.DB.Close()
}
