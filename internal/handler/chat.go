// Package handler provides HTTP handlers for the gateway API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/internal/memory"
	"github.com/buddy-ai/buddyai/internal/middleware"
	"github.com/buddy-ai/buddyai/internal/model"
	"github.com/buddy-ai/buddyai/internal/service"
	"github.com/buddy-ai/buddyai/pkg/logger"
)

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.service.Chat(ctx, req.Message)
	if err != nil {
		if errors.Is(err, memory.ErrNotReady) {
			writeError(w, http.StatusServiceUnavailable, "memory not ready")
			return
		}
		h.logger.Error("chat exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to generate a response")
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{Response: answer})
}

// APIRoot handles GET /api/
func (h *ChatHandler) APIRoot(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("User route"))
}

// Root handles GET /
func (h *ChatHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Hello World!"))
}
