package handler

import (
	"net/http"

	"github.com/buddy-ai/buddyai/internal/service"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	service *service.ChatService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *service.ChatService) *HealthHandler {
	return &HealthHandler{
		service: svc,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.service.MemoryReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "memory not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
