package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linksaver/internal/domain"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type memoryQueue struct {
	mu        sync.Mutex
	pending   map[string][]*domain.QueueJob
	completed []string
	failed    map[string]string
	retried   []string
	enqueued  []interface{}
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{
		pending: make(map[string][]*domain.QueueJob),
		failed:  make(map[string]string),
	}
}

func (q *memoryQueue) push(jobType string, payload map[string]interface{}) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := &domain.QueueJob{ID: uuid.NewString(), Type: jobType, Payload: payload, Status: domain.JobStatusPending}
	q.pending[jobType] = append(q.pending[jobType], job)
	return job.ID
}

func (q *memoryQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, payload)
	return nil
}

func (q *memoryQueue) Dequeue(ctx context.Context, jobType string) (*domain.QueueJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.pending[jobType]
	if len(jobs) == 0 {
		return nil, nil
	}
	q.pending[jobType] = jobs[1:]
	return jobs[0], nil
}

func (q *memoryQueue) Complete(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, jobID)
	return nil
}

func (q *memoryQueue) Fail(ctx context.Context, jobID string, errorMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobID] = errorMsg
	return nil
}

func (q *memoryQueue) GetPendingCount(ctx context.Context, jobType string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[jobType]), nil
}

func (q *memoryQueue) ProcessRetryJobs(ctx context.Context, jobType string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, jobType)
	return nil
}

type stubRefresher struct {
	mu    sync.Mutex
	calls map[uuid.UUID]string
	err   error
	panic bool
}

func (r *stubRefresher) RefreshMetadata(ctx context.Context, id uuid.UUID, rawURL string) (domain.LinkMetadata, error) {
	if r.panic {
		panic("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[uuid.UUID]string)
	}
	r.calls[id] = rawURL
	if r.err != nil {
		return domain.LinkMetadata{}, r.err
	}
	return domain.LinkMetadata{Title: "Example Domain", Summary: "An example page."}, nil
}

type recordingNotifier struct {
	sent []domain.NotifyPayload
	err  error
}

func (n *recordingNotifier) NotifySaved(ctx context.Context, p domain.NotifyPayload) error {
	n.sent = append(n.sent, p)
	return n.err
}

type staticStale struct {
	bookmarks []*domain.Bookmark
	olderThan time.Duration
	limit     int
}

func (s *staticStale) StaleBookmarks(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Bookmark, error) {
	s.olderThan = olderThan
	s.limit = limit
	return s.bookmarks, nil
}

func newTestWorker(t *testing.T, q *memoryQueue, r MetadataRefresher, n Notifier, stale StaleSource) *WorkerService {
	t.Helper()
	logger := createTestLogger()
	w, err := New(logger, q, NewJobProcessor(logger, r, n), stale, Options{
		RefreshSchedule: "@hourly",
		RefreshAfter:    time.Hour,
	})
	require.NoError(t, err)
	return w
}

func TestProcessRefreshJob(t *testing.T) {
	q := newMemoryQueue()
	r := &stubRefresher{}
	w := newTestWorker(t, q, r, nil, nil)

	id := uuid.New()
	jobID := q.push(domain.JobTypeRefreshMetadata, map[string]interface{}{
		"bookmark_id": id.String(),
		"user_id":     uuid.NewString(),
		"url":         "https://example.com",
	})

	w.processPendingJobs(context.Background())

	assert.Equal(t, "https://example.com", r.calls[id])
	assert.Equal(t, []string{jobID}, q.completed)
	assert.Empty(t, q.failed)

	stats := w.GetStats()
	assert.Equal(t, int64(1), stats.JobsProcessed)
	assert.Equal(t, int64(1), stats.JobsSucceeded)
}

func TestProcessRefreshJobDeletedBookmark(t *testing.T) {
	q := newMemoryQueue()
	r := &stubRefresher{err: fmt.Errorf("failed to update metadata: %w", domain.ErrNotFound)}
	w := newTestWorker(t, q, r, nil, nil)

	jobID := q.push(domain.JobTypeRefreshMetadata, map[string]interface{}{
		"bookmark_id": uuid.NewString(),
		"url":         "https://example.com/gone",
	})

	w.processPendingJobs(context.Background())

	assert.Equal(t, []string{jobID}, q.completed)
	assert.Empty(t, q.failed)
	assert.Equal(t, int64(1), w.GetStats().JobsSucceeded)
}

func TestProcessRefreshJobFailures(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]interface{}
		refresh  *stubRefresher
		contains string
	}{
		{
			name:     "bad bookmark id",
			payload:  map[string]interface{}{"bookmark_id": "nope", "url": "https://example.com"},
			refresh:  &stubRefresher{},
			contains: "invalid bookmark_id",
		},
		{
			name:     "missing url",
			payload:  map[string]interface{}{"bookmark_id": uuid.NewString()},
			refresh:  &stubRefresher{},
			contains: "missing url",
		},
		{
			name:     "refresh error",
			payload:  map[string]interface{}{"bookmark_id": uuid.NewString(), "url": "https://example.com"},
			refresh:  &stubRefresher{err: errors.New("db down")},
			contains: "db down",
		},
		{
			name:     "panic",
			payload:  map[string]interface{}{"bookmark_id": uuid.NewString(), "url": "https://example.com"},
			refresh:  &stubRefresher{panic: true},
			contains: "panicked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newMemoryQueue()
			w := newTestWorker(t, q, tt.refresh, nil, nil)
			jobID := q.push(domain.JobTypeRefreshMetadata, tt.payload)

			w.processPendingJobs(context.Background())

			assert.Empty(t, q.completed)
			require.Contains(t, q.failed, jobID)
			assert.Contains(t, q.failed[jobID], tt.contains)
			assert.Equal(t, int64(1), w.GetStats().JobsFailed)
		})
	}
}

func TestProcessNotification(t *testing.T) {
	payload := map[string]interface{}{
		"bookmark_id": uuid.NewString(),
		"url":         "https://example.com",
		"title":       "Example Domain",
	}

	t.Run("sends through notifier", func(t *testing.T) {
		q := newMemoryQueue()
		n := &recordingNotifier{}
		w := newTestWorker(t, q, &stubRefresher{}, n, nil)
		q.push(domain.JobTypeNotifySaved, payload)

		w.processPendingJobs(context.Background())

		require.Len(t, n.sent, 1)
		assert.Equal(t, "Example Domain", n.sent[0].Title)
		assert.Len(t, q.completed, 1)
	})

	t.Run("no notifier completes", func(t *testing.T) {
		q := newMemoryQueue()
		w := newTestWorker(t, q, &stubRefresher{}, nil, nil)
		q.push(domain.JobTypeNotifySaved, payload)

		w.processPendingJobs(context.Background())

		assert.Len(t, q.completed, 1)
	})

	t.Run("notifier error fails job", func(t *testing.T) {
		q := newMemoryQueue()
		n := &recordingNotifier{err: errors.New("discord unavailable")}
		w := newTestWorker(t, q, &stubRefresher{}, n, nil)
		jobID := q.push(domain.JobTypeNotifySaved, payload)

		w.processPendingJobs(context.Background())

		assert.Contains(t, q.failed[jobID], "discord unavailable")
	})
}

func TestProcessJobTypeBoundedPerCycle(t *testing.T) {
	q := newMemoryQueue()
	w := newTestWorker(t, q, &stubRefresher{}, nil, nil)
	for i := 0; i < maxJobsPerCycle+5; i++ {
		q.push(domain.JobTypeRefreshMetadata, map[string]interface{}{
			"bookmark_id": uuid.NewString(),
			"url":         "https://example.com",
		})
	}

	w.processJobType(context.Background(), domain.JobTypeRefreshMetadata)

	assert.Len(t, q.completed, maxJobsPerCycle)
	count, _ := q.GetPendingCount(context.Background(), domain.JobTypeRefreshMetadata)
	assert.Equal(t, 5, count)
}

func TestUnknownJobTypeFails(t *testing.T) {
	logger := createTestLogger()
	p := NewJobProcessor(logger, &stubRefresher{}, nil)
	err := p.Process(context.Background(), &domain.QueueJob{Type: "mystery"}, logger)
	assert.ErrorContains(t, err, "unknown job type")
}

func TestEnqueueStale(t *testing.T) {
	q := newMemoryQueue()
	b := &domain.Bookmark{ID: uuid.New(), UserID: uuid.New(), URL: "https://example.com/slow"}
	stale := &staticStale{bookmarks: []*domain.Bookmark{b}}
	w := newTestWorker(t, q, &stubRefresher{}, nil, stale)

	w.enqueueStale(context.Background())

	assert.Equal(t, time.Hour, stale.olderThan)
	assert.Equal(t, defaultRefreshBatch, stale.limit)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, domain.RefreshPayload{
		BookmarkID: b.ID.String(),
		UserID:     b.UserID.String(),
		URL:        b.URL,
	}, q.enqueued[0])
}

func TestPromoteRetriesCoversEveryJobType(t *testing.T) {
	q := newMemoryQueue()
	w := newTestWorker(t, q, &stubRefresher{}, nil, nil)

	w.promoteRetries(context.Background())

	assert.Equal(t, domain.JobTypes, q.retried)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	logger := createTestLogger()
	_, err := New(logger, newMemoryQueue(), NewJobProcessor(logger, &stubRefresher{}, nil), &staticStale{}, Options{
		RefreshSchedule: "every tuesday",
	})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	q := newMemoryQueue()
	w := newTestWorker(t, q, &stubRefresher{}, nil, nil)
	w.opts.PollInterval = 10 * time.Millisecond
	q.push(domain.JobTypeNotifySaved, map[string]interface{}{"url": "https://example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.completed) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSavedEmbed(t *testing.T) {
	e := savedEmbed(domain.NotifyPayload{URL: "https://example.com"})
	assert.Equal(t, "🔖 https://example.com", e.Title)
	assert.Equal(t, "https://example.com", e.URL)

	e = savedEmbed(domain.NotifyPayload{URL: "https://example.com", Title: "Example Domain"})
	assert.Equal(t, "🔖 Example Domain", e.Title)
}
