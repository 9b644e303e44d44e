package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for account data operations
type UserRepository interface {
	// Create inserts a new user; returns ErrEmailTaken on a duplicate email
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by UUID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// BookmarkRepository defines the interface for bookmark data operations.
// Every read and write is scoped to the owning user.
type BookmarkRepository interface {
	// Create inserts a new bookmark; returns ErrDuplicateBookmark if the user already saved the URL
	Create(ctx context.Context, bookmark *Bookmark) error

	// GetByID retrieves one of the user's bookmarks
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Bookmark, error)

	// GetByURL finds the user's bookmark for a URL (for duplicate detection)
	GetByURL(ctx context.Context, userID uuid.UUID, url string) (*Bookmark, error)

	// List returns bookmarks newest first, filtered and paginated by created_at cursor
	List(ctx context.Context, userID uuid.UUID, filter BookmarkFilter) ([]*Bookmark, error)

	// Tags returns the distinct tags used by the user, sorted
	Tags(ctx context.Context, userID uuid.UUID) ([]string, error)

	// UpdateTags replaces the tags of one bookmark
	UpdateTags(ctx context.Context, userID, id uuid.UUID, tags []string) error

	// UpdateMetadata replaces title, summary and favicon of a bookmark
	UpdateMetadata(ctx context.Context, id uuid.UUID, md LinkMetadata) error

	// Delete removes one of the user's bookmarks
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// Stats counts the user's bookmarks
	Stats(ctx context.Context, userID uuid.UUID) (*BookmarkStats, error)

	// ListNeedingRefresh returns bookmarks still carrying a placeholder summary
	// that were last updated before the given time
	ListNeedingRefresh(ctx context.Context, updatedBefore time.Time, limit int) ([]*Bookmark, error)
}

// MetadataCache stores extracted metadata by canonical URL
type MetadataCache interface {
	Get(ctx context.Context, url string) (*LinkMetadata, error)
	Set(ctx context.Context, url string, md LinkMetadata) error
}

// QueueRepository defines the interface for job queue operations
type QueueRepository interface {
	// Enqueue adds a new job to the queue
	Enqueue(ctx context.Context, jobType string, payload interface{}) error

	// Dequeue retrieves the next job from the queue
	Dequeue(ctx context.Context, jobType string) (*QueueJob, error)

	// Complete marks a job as completed
	Complete(ctx context.Context, jobID string) error

	// Fail marks a job as failed with error details
	Fail(ctx context.Context, jobID string, errorMsg string) error

	// GetPendingCount returns the number of pending jobs
	GetPendingCount(ctx context.Context, jobType string) (int, error)

	// ProcessRetryJobs moves due retries back onto the main queue
	ProcessRetryJobs(ctx context.Context, jobType string) error
}

// QueueJob represents a job in the processing queue
type QueueJob struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Status    string                 `json:"status"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt *string                `json:"updated_at"`
}

// Job types
const (
	JobTypeRefreshMetadata = "refresh_metadata"
	JobTypeNotifySaved     = "notify_saved"
)

// JobTypes lists every job type the worker drains
var JobTypes = []string{JobTypeRefreshMetadata, JobTypeNotifySaved}

// Job statuses
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// RefreshPayload asks the worker to re-extract a bookmark's metadata
type RefreshPayload struct {
	BookmarkID string `json:"bookmark_id"`
	UserID     string `json:"user_id"`
	URL        string `json:"url"`
}

// NotifyPayload announces a newly saved bookmark
type NotifyPayload struct {
	BookmarkID string `json:"bookmark_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
}
