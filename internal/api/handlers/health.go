package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
)

// HealthCheck probes a dependency. A nil check always passes.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check requests.
type HealthHandler struct {
	check HealthCheck
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(check HealthCheck) *HealthHandler {
	return &HealthHandler{check: check}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := dto.NewHealthResponse()

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			response.Status = "unavailable"
			response.Error = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
