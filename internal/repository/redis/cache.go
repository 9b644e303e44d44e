package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"linksaver/internal/domain"
)

// MetadataCache implements domain.MetadataCache with expiring Redis strings
type MetadataCache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewMetadataCache creates a cache whose entries live for ttl
func NewMetadataCache(client *redis.Client, logger *slog.Logger, ttl time.Duration) *MetadataCache {
	return &MetadataCache{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func metadataKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyNamespace + "metadata:" + hex.EncodeToString(sum[:])
}

// Get returns the cached metadata for url, or nil when there is none
func (c *MetadataCache) Get(ctx context.Context, url string) (*domain.LinkMetadata, error) {
	data, err := c.client.Get(ctx, metadataKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	}

	var md domain.LinkMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		c.logger.Warn("Discarding corrupt metadata cache entry", "error", err, "url", url)
		c.client.Del(ctx, metadataKey(url))
		return nil, nil
	}
	return &md, nil
}

// Set stores metadata for url
func (c *MetadataCache) Set(ctx context.Context, url string, md domain.LinkMetadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := c.client.Set(ctx, metadataKey(url), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	return nil
}
