package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency. The returned value, if any, is reported
// alongside the check result.
type HealthCheck func(ctx context.Context) (any, error)

type checkResult struct {
	Status string `json:"status"`
	Detail any    `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

type HealthHandler struct {
	logger *slog.Logger
	checks map[string]HealthCheck
}

func NewHealthHandler(logger *slog.Logger, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		checks: checks,
	}
}

// HandleHealth runs every dependency check; any failure answers 503
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]checkResult, len(names)),
	}
	status := http.StatusOK

	for _, name := range names {
		detail, err := h.checks[name](ctx)
		if err != nil {
			h.logger.Warn("Health check failed", "check", name, "error", err)
			response.Status = "unhealthy"
			response.Checks[name] = checkResult{Status: "error", Error: err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = checkResult{Status: "ok", Detail: detail}
	}

	writeJSONResponse(w, h.logger, status, response)
}
