package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Summary texts used when no real summary could be produced
const (
	SummaryPlaceholder = "No summary available"
	SummaryUnavailable = "Unable to generate summary for this link."
	SummaryInvalidURL  = "Failed to process this link."
	TitleInvalidURL    = "Invalid URL"
)

// LinkMetadata is the best-effort description of a saved URL
type LinkMetadata struct {
	Title   string  `json:"title"`
	Favicon *string `json:"favicon"`
	Summary string  `json:"summary"`
}

// HasSummary reports whether the summary came from the page rather than a placeholder
func (m LinkMetadata) HasSummary() bool {
	switch m.Summary {
	case "", SummaryPlaceholder, SummaryUnavailable, SummaryInvalidURL:
		return false
	}
	return true
}

// Bookmark is a URL saved by a user together with its extracted metadata
type Bookmark struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	URL        string    `json:"url" db:"url"`
	Title      string    `json:"title" db:"title"`
	Summary    string    `json:"summary" db:"summary"`
	FaviconURL *string   `json:"favicon_url" db:"favicon_url"`
	Tags       []string  `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyMetadata copies extracted metadata onto the bookmark
func (b *Bookmark) ApplyMetadata(md LinkMetadata) {
	b.Title = md.Title
	b.Summary = md.Summary
	b.FaviconURL = md.Favicon
}

// Cursor marks the last bookmark of a page in (created_at, id) order.
// A zero ID matches on created_at alone.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Admits reports whether b comes after the cursor in newest-first order
func (c Cursor) Admits(b *Bookmark) bool {
	if !b.CreatedAt.Equal(c.CreatedAt) {
		return b.CreatedAt.Before(c.CreatedAt)
	}
	if c.ID == uuid.Nil {
		return false
	}
	return bytes.Compare(b.ID[:], c.ID[:]) < 0
}

// BookmarkFilter narrows a bookmark listing.
// Query matches title, summary and URL case-insensitively; Tag must be one of the bookmark's tags.
type BookmarkFilter struct {
	Query  string
	Tag    string
	Cursor *Cursor
	Limit  int
}

// BookmarkStats summarises a user's library
type BookmarkStats struct {
	Total     int `json:"total"`
	ThisMonth int `json:"this_month"`
}

// MaxTags bounds the number of tags kept on one bookmark
const MaxTags = 20
