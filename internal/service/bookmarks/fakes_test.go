package bookmarks

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"linksaver/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryBookmarks struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Bookmark
}

func newMemoryBookmarks() *memoryBookmarks {
	return &memoryBookmarks{rows: map[uuid.UUID]*domain.Bookmark{}}
}

func (m *memoryBookmarks) Create(_ context.Context, b *domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.UserID == b.UserID && row.URL == b.URL {
			return domain.ErrDuplicateBookmark
		}
	}
	copied := *b
	m.rows[b.ID] = &copied
	return nil
}

func (m *memoryBookmarks) GetByID(_ context.Context, userID, id uuid.UUID) (*domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.UserID != userID {
		return nil, domain.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *memoryBookmarks) GetByURL(_ context.Context, userID uuid.UUID, url string) (*domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.UserID == userID && b.URL == url {
			copied := *b
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryBookmarks) List(_ context.Context, userID uuid.UUID, f domain.BookmarkFilter) ([]*domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Bookmark
	for _, b := range m.rows {
		if b.UserID != userID {
			continue
		}
		if f.Cursor != nil && !f.Cursor.Admits(b) {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(b.Title+" "+b.Summary+" "+b.URL), q) {
				continue
			}
		}
		if f.Tag != "" && !contains(b.Tags, f.Tag) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (m *memoryBookmarks) Tags(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]bool{}
	for _, b := range m.rows {
		if b.UserID == userID {
			for _, t := range b.Tags {
				set[t] = true
			}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

func (m *memoryBookmarks) UpdateTags(_ context.Context, userID, id uuid.UUID, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.UserID != userID {
		return domain.ErrNotFound
	}
	b.Tags = tags
	return nil
}

func (m *memoryBookmarks) UpdateMetadata(_ context.Context, id uuid.UUID, md domain.LinkMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.ApplyMetadata(md)
	b.UpdatedAt = time.Now()
	return nil
}

func (m *memoryBookmarks) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryBookmarks) Stats(_ context.Context, userID uuid.UUID) (*domain.BookmarkStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.BookmarkStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for _, b := range m.rows {
		if b.UserID != userID {
			continue
		}
		stats.Total++
		if !b.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
	}
	return stats, nil
}

func (m *memoryBookmarks) ListNeedingRefresh(_ context.Context, before time.Time, limit int) ([]*domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Bookmark
	for _, b := range m.rows {
		if (b.Summary == domain.SummaryPlaceholder || b.Summary == domain.SummaryUnavailable) && b.UpdatedAt.Before(before) {
			copied := *b
			out = append(out, &copied)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubExtractor struct {
	md      domain.LinkMetadata
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (s *stubExtractor) Extract(ctx context.Context, _ string) (domain.LinkMetadata, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return domain.LinkMetadata{}, ctx.Err()
		}
	}
	return s.md, s.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]domain.LinkMetadata
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]domain.LinkMetadata{}}
}

func (c *memoryCache) Get(_ context.Context, url string) (*domain.LinkMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	md, ok := c.entries[url]
	if !ok {
		return nil, nil
	}
	return &md, nil
}

func (c *memoryCache) Set(_ context.Context, url string, md domain.LinkMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = md
	return nil
}

type enqueued struct {
	jobType string
	payload any
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []enqueued
}

func (q *recordingQueue) Enqueue(_ context.Context, jobType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, enqueued{jobType: jobType, payload: payload})
	return nil
}

func (q *recordingQueue) Dequeue(context.Context, string) (*domain.QueueJob, error) { return nil, nil }
func (q *recordingQueue) Complete(context.Context, string) error                    { return nil }
func (q *recordingQueue) Fail(context.Context, string, string) error                { return nil }
func (q *recordingQueue) GetPendingCount(context.Context, string) (int, error)      { return 0, nil }
func (q *recordingQueue) ProcessRetryJobs(context.Context, string) error            { return nil }

func (q *recordingQueue) Jobs() []enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]enqueued(nil), q.jobs...)
}
