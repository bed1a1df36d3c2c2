package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/services"
)

type ChatHandler struct {
	chat   *services.ChatService
	logger *zap.Logger
}

func NewChatHandler(chat *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// Chat runs one conversation turn against a notebook's documents.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req services.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NotebookID == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "notebook_id and user_id are required")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := h.chat.ProcessTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrNotebookNotFound) {
			respondError(w, http.StatusNotFound, "notebook not found")
			return
		}
		h.logger.Error("chat turn failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
