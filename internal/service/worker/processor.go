package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"linksaver/internal/domain"
)

// MetadataRefresher re-runs extraction for a stored bookmark
type MetadataRefresher interface {
	RefreshMetadata(ctx context.Context, bookmarkID uuid.UUID, rawURL string) (domain.LinkMetadata, error)
}

// JobProcessor handles different types of background jobs
type JobProcessor struct {
	logger    *slog.Logger
	refresher MetadataRefresher
	notifier  Notifier
}

// NewJobProcessor creates a new job processor. notifier may be nil.
func NewJobProcessor(logger *slog.Logger, refresher MetadataRefresher, notifier Notifier) *JobProcessor {
	return &JobProcessor{
		logger:    logger,
		refresher: refresher,
		notifier:  notifier,
	}
}

// Process dispatches a job by type
func (p *JobProcessor) Process(ctx context.Context, job *domain.QueueJob, logger *slog.Logger) error {
	switch job.Type {
	case domain.JobTypeRefreshMetadata:
		return p.ProcessRefresh(ctx, job.Payload, logger)
	case domain.JobTypeNotifySaved:
		return p.ProcessNotification(ctx, job.Payload, logger)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// ProcessRefresh re-extracts a bookmark's metadata and stores the result
func (p *JobProcessor) ProcessRefresh(ctx context.Context, payload map[string]interface{}, logger *slog.Logger) error {
	var job domain.RefreshPayload
	if err := decodePayload(payload, &job); err != nil {
		return err
	}

	bookmarkID, err := uuid.Parse(job.BookmarkID)
	if err != nil {
		return fmt.Errorf("invalid bookmark_id format: %w", err)
	}
	if job.URL == "" {
		return fmt.Errorf("missing url in payload")
	}

	logger.Info("Refreshing bookmark metadata", "bookmark_id", bookmarkID, "url", job.URL)

	md, err := p.refresher.RefreshMetadata(ctx, bookmarkID, job.URL)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("Bookmark deleted before refresh, skipping", "bookmark_id", bookmarkID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh metadata: %w", err)
	}

	logger.Info("Metadata refresh completed",
		"bookmark_id", bookmarkID,
		"title", md.Title,
		"has_summary", md.HasSummary(),
	)
	return nil
}

// ProcessNotification posts a saved-bookmark notice when a notifier is configured
func (p *JobProcessor) ProcessNotification(ctx context.Context, payload map[string]interface{}, logger *slog.Logger) error {
	var job domain.NotifyPayload
	if err := decodePayload(payload, &job); err != nil {
		return err
	}

	if p.notifier == nil {
		logger.Debug("No notifier configured, skipping", "bookmark_id", job.BookmarkID)
		return nil
	}
	return p.notifier.NotifySaved(ctx, job)
}

func decodePayload(payload map[string]interface{}, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
