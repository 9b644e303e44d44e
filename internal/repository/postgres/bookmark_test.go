package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"linksaver/internal/domain"
)

func TestBuildListQuery(t *testing.T) {
	userID := uuid.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lastID := uuid.New()

	tests := []struct {
		name      string
		filter    domain.BookmarkFilter
		wantParts []string
		wantArgs  []any
	}{
		{
			name:      "user only",
			filter:    domain.BookmarkFilter{},
			wantParts: []string{"WHERE user_id = $1 ORDER BY created_at DESC, id DESC"},
			wantArgs:  []any{userID},
		},
		{
			name:   "search, tag, cursor and limit",
			filter: domain.BookmarkFilter{Query: " Go ", Tag: "dev", Cursor: &domain.Cursor{CreatedAt: created, ID: lastID}, Limit: 21},
			wantParts: []string{
				"(title ILIKE $2 OR summary ILIKE $2 OR url ILIKE $2)",
				"AND $3 = ANY(tags)",
				"AND (created_at, id) < ($4, $5)",
				"ORDER BY created_at DESC, id DESC LIMIT $6",
			},
			wantArgs: []any{userID, "%Go%", "dev", created, lastID, 21},
		},
		{
			name:      "timestamp-only cursor",
			filter:    domain.BookmarkFilter{Cursor: &domain.Cursor{CreatedAt: created}},
			wantParts: []string{"AND created_at < $2"},
			wantArgs:  []any{userID, created},
		},
		{
			name:      "tag only",
			filter:    domain.BookmarkFilter{Tag: "news"},
			wantParts: []string{"AND $2 = ANY(tags)"},
			wantArgs:  []any{userID, "news"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(userID, tt.filter)
			for _, part := range tt.wantParts {
				assert.Contains(t, query, part)
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% off\_now \\o/`, escapeLike(`100% off_now \o/`))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
