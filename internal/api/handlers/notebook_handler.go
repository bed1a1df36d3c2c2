package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/services"
)

type NotebookHandler struct {
	notebooks *services.NotebookService
	logger    *zap.Logger
}

func NewNotebookHandler(notebooks *services.NotebookService, logger *zap.Logger) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks, logger: logger}
}

func (h *NotebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	var req services.CreateNotebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	nb, err := h.notebooks.Create(r.Context(), userID, req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, nb)
}

func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	summary, err := h.notebooks.Summary(r.Context(), notebookID, userID)
	if err != nil {
		if errors.Is(err, services.ErrNotebookNotFound) {
			respondError(w, http.StatusNotFound, "notebook not found")
			return
		}
		h.logger.Error("fetching notebook failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *NotebookHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	notebooks, err := h.notebooks.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing notebooks failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, notebooks)
}

func (h *NotebookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.notebooks.ListBooks(r.Context())
	if err != nil {
		h.logger.Error("listing books failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, books)
}
