package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"linksaver/internal/domain"
	"linksaver/internal/http/middleware"
	"linksaver/internal/service/bookmarks"
)

// maxQueryLen bounds search terms
const maxQueryLen = 500

// BookmarkService manages a user's library
type BookmarkService interface {
	Add(ctx context.Context, userID uuid.UUID, rawURL string, tags []string) (*domain.Bookmark, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, filter domain.BookmarkFilter) (*bookmarks.Page, error)
	Tags(ctx context.Context, userID uuid.UUID) ([]string, error)
	SetTags(ctx context.Context, userID, id uuid.UUID, tags []string) ([]string, error)
	Stats(ctx context.Context, userID uuid.UUID) (*domain.BookmarkStats, error)
	Refresh(ctx context.Context, userID, id uuid.UUID) error
}

// BookmarksResponse represents one page of bookmarks
type BookmarksResponse struct {
	Bookmarks []*domain.Bookmark `json:"bookmarks"`
	HasMore   bool               `json:"has_more"`
	Cursor    *string            `json:"cursor,omitempty"`
}

type addBookmarkRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

type BookmarksHandler struct {
	logger    *slog.Logger
	bookmarks BookmarkService
}

func NewBookmarksHandler(logger *slog.Logger, bookmarks BookmarkService) *BookmarksHandler {
	return &BookmarksHandler{
		logger:    logger,
		bookmarks: bookmarks,
	}
}

// ListBookmarks handles GET /api/v1/bookmarks?q=&tag=&cursor=&limit=
func (h *BookmarksHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("q"))
	if len(query) > maxQueryLen {
		writeError(w, h.logger, http.StatusBadRequest, "Search query too long (max 500 characters)")
		return
	}

	cursor, err := parseCursor(params.Get("cursor"))
	if err != nil {
		h.logger.Warn("Invalid cursor format", "cursor", params.Get("cursor"), "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid cursor format")
		return
	}

	limit := bookmarks.DefaultPageSize
	if limitStr := params.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= bookmarks.MaxPageSize {
			limit = parsed
		}
	}

	page, err := h.bookmarks.List(r.Context(), user.ID, domain.BookmarkFilter{
		Query:  query,
		Tag:    params.Get("tag"),
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	response := buildBookmarksResponse(page)
	h.logger.Debug("Listed bookmarks", "user_id", user.ID, "count", len(response.Bookmarks), "has_more", response.HasMore)
	writeJSONResponse(w, h.logger, http.StatusOK, response)
}

// AddBookmark handles POST /api/v1/bookmarks
func (h *BookmarksHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body addBookmarkRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	bookmark, err := h.bookmarks.Add(r.Context(), user.ID, body.URL, body.Tags)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSONResponse(w, h.logger, http.StatusCreated, map[string]*domain.Bookmark{"bookmark": bookmark})
}

// DeleteBookmark handles DELETE /api/v1/bookmarks/{id}
func (h *BookmarksHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := h.bookmarks.Delete(r.Context(), user.ID, id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTags handles PUT /api/v1/bookmarks/{id}/tags
func (h *BookmarksHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var body tagsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	tags, err := h.bookmarks.SetTags(r.Context(), user.ID, id, body.Tags)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSONResponse(w, h.logger, http.StatusOK, tagsResponse{Tags: nonNil(tags)})
}

// RefreshBookmark handles POST /api/v1/bookmarks/{id}/refresh
func (h *BookmarksHandler) RefreshBookmark(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := h.bookmarks.Refresh(r.Context(), user.ID, id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSONResponse(w, h.logger, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ListTags handles GET /api/v1/tags
func (h *BookmarksHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	tags, err := h.bookmarks.Tags(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSONResponse(w, h.logger, http.StatusOK, tagsResponse{Tags: nonNil(tags)})
}

func (h *BookmarksHandler) userAndID(w http.ResponseWriter, r *http.Request) (*domain.SessionUser, uuid.UUID, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return nil, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid bookmark ID")
		return nil, uuid.Nil, false
	}
	return user, id, true
}

// cursorSep joins the timestamp and ID halves of a cursor
const cursorSep = "_"

// parseCursor parses "<RFC3339 timestamp>_<bookmark id>"; a bare timestamp
// is accepted too. Empty means first page.
func parseCursor(cursorStr string) (*domain.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}
	tsPart, idPart, hasID := strings.Cut(cursorStr, cursorSep)

	createdAt, err := time.Parse(time.RFC3339Nano, tsPart)
	if err != nil {
		return nil, err
	}
	cursor := &domain.Cursor{CreatedAt: createdAt}
	if hasID {
		if cursor.ID, err = uuid.Parse(idPart); err != nil {
			return nil, err
		}
	}
	return cursor, nil
}

func formatCursor(c *domain.Cursor) string {
	s := c.CreatedAt.UTC().Format(time.RFC3339Nano)
	if c.ID != uuid.Nil {
		s += cursorSep + c.ID.String()
	}
	return s
}

func buildBookmarksResponse(page *bookmarks.Page) *BookmarksResponse {
	response := &BookmarksResponse{
		Bookmarks: page.Bookmarks,
		HasMore:   page.HasMore,
	}
	if response.Bookmarks == nil {
		response.Bookmarks = []*domain.Bookmark{}
	}

	if page.HasMore && page.NextCursor != nil {
		cursorStr := formatCursor(page.NextCursor)
		response.Cursor = &cursorStr
	}
	return response
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
