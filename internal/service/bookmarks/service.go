package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"linksaver/internal/domain"
	"linksaver/internal/pkg/linkurl"
	"linksaver/internal/service/metadata"
)

// Listing page sizes
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Extractor produces metadata for a URL
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (domain.LinkMetadata, error)
}

// Page is one page of a bookmark listing
type Page struct {
	Bookmarks  []*domain.Bookmark
	HasMore    bool
	NextCursor *domain.Cursor
}

// Service manages a user's bookmark library
type Service struct {
	logger    *slog.Logger
	bookmarks domain.BookmarkRepository
	cache     domain.MetadataCache
	queue     domain.QueueRepository
	extractor Extractor

	inflight singleflight.Group
	now      func() time.Time
}

// NewService creates a bookmark service. cache and queue may be nil.
func NewService(
	logger *slog.Logger,
	bookmarks domain.BookmarkRepository,
	cache domain.MetadataCache,
	queue domain.QueueRepository,
	extractor Extractor,
) *Service {
	return &Service{
		logger:    logger,
		bookmarks: bookmarks,
		cache:     cache,
		queue:     queue,
		extractor: extractor,
		now:       time.Now,
	}
}

// Add saves rawURL for the user with freshly extracted metadata.
// Concurrent adds of the same URL by the same user share one extraction
// and one insert.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, rawURL string, tags []string) (*domain.Bookmark, error) {
	clean := strings.TrimSpace(rawURL)
	if clean == "" {
		return nil, domain.ErrURLRequired
	}

	target, err := metadata.Validate(clean)
	if err != nil {
		return nil, domain.ErrInvalidURL
	}

	key := userID.String() + "|" + clean
	v, err, shared := s.inflight.Do(key, func() (any, error) {
		return s.add(ctx, userID, clean, target, NormalizeTags(tags))
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Joined in-flight bookmark add", "user_id", userID, "url", clean)
	}
	return v.(*domain.Bookmark), nil
}

func (s *Service) add(ctx context.Context, userID uuid.UUID, clean string, target *url.URL, tags []string) (*domain.Bookmark, error) {
	if _, err := s.bookmarks.GetByURL(ctx, userID, clean); err == nil {
		return nil, domain.ErrDuplicateBookmark
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	md, err := s.metadataFor(ctx, clean, target)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bookmark := &domain.Bookmark{
		ID:        uuid.New(),
		UserID:    userID,
		URL:       clean,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	bookmark.ApplyMetadata(md)

	if err := s.bookmarks.Create(ctx, bookmark); err != nil {
		return nil, err
	}

	s.logger.Info("Bookmark saved",
		"bookmark_id", bookmark.ID,
		"user_id", userID,
		"url", clean,
		"has_summary", md.HasSummary(),
	)

	if s.queue != nil {
		payload := domain.NotifyPayload{
			BookmarkID: bookmark.ID.String(),
			URL:        bookmark.URL,
			Title:      bookmark.Title,
		}
		if err := s.queue.Enqueue(ctx, domain.JobTypeNotifySaved, payload); err != nil {
			s.logger.Warn("Failed to enqueue save notification", "error", err, "bookmark_id", bookmark.ID)
		}
	}

	return bookmark, nil
}

// metadataFor returns cached metadata for the URL or runs the extractor.
// Only results with a real summary are cached so placeholders get retried.
func (s *Service) metadataFor(ctx context.Context, clean string, target *url.URL) (domain.LinkMetadata, error) {
	cacheKey := linkurl.Canonical(target)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("Metadata cache read failed", "error", err)
		} else if cached != nil {
			s.logger.Debug("Metadata cache hit", "url", clean)
			return *cached, nil
		}
	}

	md, err := s.extractor.Extract(ctx, clean)
	if err != nil {
		return md, err
	}

	if s.cache != nil && md.HasSummary() {
		if err := s.cache.Set(ctx, cacheKey, md); err != nil {
			s.logger.Warn("Metadata cache write failed", "error", err)
		}
	}
	return md, nil
}

// RefreshMetadata re-runs extraction for a bookmark and stores the result,
// bypassing the cache read.
func (s *Service) RefreshMetadata(ctx context.Context, bookmarkID uuid.UUID, rawURL string) (domain.LinkMetadata, error) {
	md, err := s.extractor.Extract(ctx, rawURL)
	if err != nil {
		return md, err
	}

	if err := s.bookmarks.UpdateMetadata(ctx, bookmarkID, md); err != nil {
		return md, err
	}

	if s.cache != nil && md.HasSummary() {
		if target, err := metadata.Validate(rawURL); err == nil {
			if err := s.cache.Set(ctx, linkurl.Canonical(target), md); err != nil {
				s.logger.Warn("Metadata cache write failed", "error", err)
			}
		}
	}
	return md, nil
}

// Refresh schedules a background metadata refresh for one of the user's bookmarks
func (s *Service) Refresh(ctx context.Context, userID, id uuid.UUID) error {
	bookmark, err := s.bookmarks.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	if s.queue == nil {
		_, err := s.RefreshMetadata(ctx, bookmark.ID, bookmark.URL)
		return err
	}

	payload := domain.RefreshPayload{
		BookmarkID: bookmark.ID.String(),
		UserID:     userID.String(),
		URL:        bookmark.URL,
	}
	if err := s.queue.Enqueue(ctx, domain.JobTypeRefreshMetadata, payload); err != nil {
		return fmt.Errorf("failed to enqueue refresh: %w", err)
	}
	return nil
}

// Delete removes one of the user's bookmarks
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.bookmarks.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("Bookmark deleted", "bookmark_id", id, "user_id", userID)
	return nil
}

// List returns one page of the user's bookmarks, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter domain.BookmarkFilter) (*Page, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter.Limit = limit + 1
	filter.Tag = strings.ToLower(strings.TrimSpace(filter.Tag))

	bookmarks, err := s.bookmarks.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	page := &Page{Bookmarks: bookmarks}
	if len(bookmarks) > limit {
		page.Bookmarks = bookmarks[:limit]
		page.HasMore = true
		last := page.Bookmarks[limit-1]
		page.NextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return page, nil
}

// Tags returns the distinct tags in the user's library
func (s *Service) Tags(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.bookmarks.Tags(ctx, userID)
}

// SetTags replaces the tags on one of the user's bookmarks and returns the stored set
func (s *Service) SetTags(ctx context.Context, userID, id uuid.UUID, tags []string) ([]string, error) {
	normalized := NormalizeTags(tags)
	if err := s.bookmarks.UpdateTags(ctx, userID, id, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// Stats summarises the user's library
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*domain.BookmarkStats, error) {
	return s.bookmarks.Stats(ctx, userID)
}

// StaleBookmarks lists bookmarks whose summary is still a placeholder after olderThan
func (s *Service) StaleBookmarks(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Bookmark, error) {
	return s.bookmarks.ListNeedingRefresh(ctx, s.now().Add(-olderThan), limit)
}
