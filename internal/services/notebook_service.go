package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/models"
)

type CreateNotebookRequest struct {
	Name           string         `json:"name"`
	SelectedBooks  []string       `json:"selected_books"`
	SelectedGenres []models.Genre `json:"selected_genres"`
}

// NotebookSummary is the read-side view of a notebook, including the current
// conversation memory.
type NotebookSummary struct {
	Notebook     *models.Notebook     `json:"notebook"`
	Books        []models.Book        `json:"books"`
	ChatMessages []models.ChatMessage `json:"chat_messages"`
}

type NotebookService struct {
	store        core.Store
	historyLimit int
	logger       *zap.Logger
}

func NewNotebookService(store core.Store, historyLimit int, logger *zap.Logger) *NotebookService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotebookService{store: store, historyLimit: historyLimit, logger: logger}
}

// Create validates the selection and stores a new notebook with empty memory.
func (s *NotebookService) Create(ctx context.Context, userID string, req CreateNotebookRequest) (*models.Notebook, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("notebook name is required")
	}
	for _, g := range req.SelectedGenres {
		if !g.Valid() {
			return nil, fmt.Errorf("unknown genre %q", g)
		}
	}
	for _, id := range req.SelectedBooks {
		book, err := s.store.GetBookByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("look up book %s: %w", id, err)
		}
		if book == nil {
			return nil, fmt.Errorf("book %s does not exist", id)
		}
	}

	nb := &models.Notebook{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		SelectedBooks:  req.SelectedBooks,
		SelectedGenres: req.SelectedGenres,
		KeyFacts:       []string{},
	}
	if err := s.store.CreateNotebook(ctx, nb); err != nil {
		return nil, fmt.Errorf("create notebook: %w", err)
	}
	return nb, nil
}

// Summary loads a notebook with its resolved books and recent chat history.
func (s *NotebookService) Summary(ctx context.Context, notebookID, userID string) (*NotebookSummary, error) {
	nb, err := s.store.GetNotebookByID(ctx, notebookID, userID)
	if err != nil {
		return nil, fmt.Errorf("get notebook: %w", err)
	}
	if nb == nil {
		return nil, ErrNotebookNotFound
	}

	books := []models.Book{}
	if len(nb.SelectedBooks) > 0 {
		books, err = s.store.GetBooksByIDs(ctx, nb.SelectedBooks)
		if err != nil {
			s.logger.Warn("resolving notebook books failed", zap.Error(err))
			books = []models.Book{}
		}
	}

	history, err := s.store.GetChatHistory(ctx, notebookID, s.historyLimit)
	if err != nil {
		s.logger.Warn("loading chat history failed", zap.Error(err))
		history = []models.ChatMessage{}
	}

	return &NotebookSummary{Notebook: nb, Books: books, ChatMessages: history}, nil
}

func (s *NotebookService) ListByUser(ctx context.Context, userID string) ([]models.Notebook, error) {
	notebooks, err := s.store.ListNotebooksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	return notebooks, nil
}

func (s *NotebookService) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}
