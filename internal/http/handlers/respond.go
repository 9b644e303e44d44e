package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"linksaver/internal/domain"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSONResponse writes a JSON response with the given status
func writeJSONResponse(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSONResponse(w, logger, status, errorResponse{Error: message})
}

// writeDomainError maps service errors onto status codes
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrURLRequired),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrMissingCredentials),
		errors.Is(err, domain.ErrWeakPassword):
		writeError(w, logger, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, domain.ErrDuplicateBookmark),
		errors.Is(err, domain.ErrEmailTaken):
		writeError(w, logger, http.StatusConflict, rootMessage(err))
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, logger, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "Not found")
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

// rootMessage returns the user-facing sentinel text instead of the wrapped chain
func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrURLRequired,
		domain.ErrInvalidURL,
		domain.ErrMissingCredentials,
		domain.ErrWeakPassword,
		domain.ErrDuplicateBookmark,
		domain.ErrEmailTaken,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
