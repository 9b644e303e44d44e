package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"linksaver/internal/domain"
)

const bookmarkColumns = `id, user_id, url, title, summary, favicon_url, tags, created_at, updated_at`

// BookmarkRepository implements the domain.BookmarkRepository interface using PostgreSQL
type BookmarkRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBookmarkRepository creates a new PostgreSQL bookmark repository
func NewBookmarkRepository(db *sql.DB, logger *slog.Logger) *BookmarkRepository {
	return &BookmarkRepository{
		db:     db,
		logger: logger,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (*domain.Bookmark, error) {
	b := &domain.Bookmark{}
	var favicon sql.NullString
	var tags pq.StringArray

	if err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.URL,
		&b.Title,
		&b.Summary,
		&favicon,
		&tags,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if favicon.Valid {
		b.FaviconURL = &favicon.String
	}
	b.Tags = []string(tags)
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return b, nil
}

// Create inserts a new bookmark
func (r *BookmarkRepository) Create(ctx context.Context, b *domain.Bookmark) error {
	query := `
		INSERT INTO bookmarks (` + bookmarkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.UserID,
		b.URL,
		b.Title,
		b.Summary,
		b.FaviconURL,
		pq.Array(tags),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateBookmark
		}
		r.logger.Error("Failed to create bookmark",
			"error", err,
			"bookmark_id", b.ID,
			"url", b.URL,
		)
		return fmt.Errorf("failed to create bookmark: %w", err)
	}

	r.logger.Debug("Bookmark created", "bookmark_id", b.ID, "user_id", b.UserID)
	return nil
}

// GetByID retrieves one of the user's bookmarks
func (r *BookmarkRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE user_id = $1 AND id = $2`

	b, err := scanBookmark(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to query bookmark", "error", err, "bookmark_id", id)
		return nil, fmt.Errorf("failed to query bookmark: %w", err)
	}
	return b, nil
}

// GetByURL finds the user's bookmark for a URL
func (r *BookmarkRepository) GetByURL(ctx context.Context, userID uuid.UUID, url string) (*domain.Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE user_id = $1 AND url = $2`

	b, err := scanBookmark(r.db.QueryRowContext(ctx, query, userID, url))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to query bookmark by URL", "error", err, "url", url)
		return nil, fmt.Errorf("failed to query bookmark by URL: %w", err)
	}
	return b, nil
}

// buildListQuery assembles the filtered listing query and its arguments
func buildListQuery(userID uuid.UUID, filter domain.BookmarkFilter) (string, []any) {
	var b strings.Builder
	args := []any{userID}

	b.WriteString(`SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE user_id = $1`)

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		fmt.Fprintf(&b, ` AND (title ILIKE $%d OR summary ILIKE $%d OR url ILIKE $%d)`, n, n, n)
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		fmt.Fprintf(&b, ` AND $%d = ANY(tags)`, len(args))
	}
	if c := filter.Cursor; c != nil {
		if c.ID == uuid.Nil {
			args = append(args, c.CreatedAt)
			fmt.Fprintf(&b, ` AND created_at < $%d`, len(args))
		} else {
			args = append(args, c.CreatedAt, c.ID)
			fmt.Fprintf(&b, ` AND (created_at, id) < ($%d, $%d)`, len(args)-1, len(args))
		}
	}

	b.WriteString(` ORDER BY created_at DESC, id DESC`)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns the user's bookmarks newest first
func (r *BookmarkRepository) List(ctx context.Context, userID uuid.UUID, filter domain.BookmarkFilter) ([]*domain.Bookmark, error) {
	query, args := buildListQuery(userID, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list bookmarks", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]*domain.Bookmark, 0)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return bookmarks, nil
}

// Tags returns the distinct tags used by the user
func (r *BookmarkRepository) Tags(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT tag
		FROM bookmarks, unnest(tags) AS tag
		WHERE user_id = $1
		ORDER BY tag`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list tags", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// UpdateTags replaces the tags of one of the user's bookmarks
func (r *BookmarkRepository) UpdateTags(ctx context.Context, userID, id uuid.UUID, tags []string) error {
	query := `UPDATE bookmarks SET tags = $1, updated_at = NOW() WHERE user_id = $2 AND id = $3`

	if tags == nil {
		tags = []string{}
	}
	result, err := r.db.ExecContext(ctx, query, pq.Array(tags), userID, id)
	if err != nil {
		r.logger.Error("Failed to update bookmark tags", "error", err, "bookmark_id", id)
		return fmt.Errorf("failed to update bookmark tags: %w", err)
	}
	return expectAffected(result)
}

// UpdateMetadata replaces title, summary and favicon of a bookmark
func (r *BookmarkRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, md domain.LinkMetadata) error {
	query := `
		UPDATE bookmarks
		SET title = $1, summary = $2, favicon_url = $3, updated_at = NOW()
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, md.Title, md.Summary, md.Favicon, id)
	if err != nil {
		r.logger.Error("Failed to update bookmark metadata", "error", err, "bookmark_id", id)
		return fmt.Errorf("failed to update bookmark metadata: %w", err)
	}
	return expectAffected(result)
}

// Delete removes one of the user's bookmarks
func (r *BookmarkRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		r.logger.Error("Failed to delete bookmark", "error", err, "bookmark_id", id)
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return expectAffected(result)
}

// Stats counts the user's bookmarks, overall and since the start of the month
func (r *BookmarkRepository) Stats(ctx context.Context, userID uuid.UUID) (*domain.BookmarkStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= date_trunc('month', NOW()))
		FROM bookmarks
		WHERE user_id = $1`

	stats := &domain.BookmarkStats{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.Total, &stats.ThisMonth); err != nil {
		r.logger.Error("Failed to count bookmarks", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return stats, nil
}

// ListNeedingRefresh returns bookmarks with a placeholder summary last
// touched before updatedBefore, oldest first
func (r *BookmarkRepository) ListNeedingRefresh(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Bookmark, error) {
	query := `
		SELECT ` + bookmarkColumns + `
		FROM bookmarks
		WHERE summary = ANY($1) AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`

	placeholders := []string{domain.SummaryPlaceholder, domain.SummaryUnavailable}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(placeholders), updatedBefore, limit)
	if err != nil {
		r.logger.Error("Failed to list stale bookmarks", "error", err)
		return nil, fmt.Errorf("failed to list stale bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*domain.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
