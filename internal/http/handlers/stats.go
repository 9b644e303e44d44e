package handlers

import (
	"log/slog"
	"net/http"

	"linksaver/internal/http/middleware"
)

type StatsHandler struct {
	logger    *slog.Logger
	bookmarks BookmarkService
}

func NewStatsHandler(logger *slog.Logger, bookmarks BookmarkService) *StatsHandler {
	return &StatsHandler{
		logger:    logger,
		bookmarks: bookmarks,
	}
}

// HandleStats returns the signed-in user's library counts
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.bookmarks.Stats(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSONResponse(w, h.logger, http.StatusOK, stats)
}
