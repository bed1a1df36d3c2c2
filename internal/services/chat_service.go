package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/core/rag"
	"github.com/insidelm/backend/internal/models"
)

// Fixed responses for turns that never reach the LLM.
const (
	noDocumentsMessage = "I don't have access to any documents in this notebook. Please select some books or genres first."
	noMatchesMessage   = "I couldn't find any relevant information in the selected documents to answer your question. Please try rephrasing or ask about a different topic."
)

var ErrNotebookNotFound = errors.New("notebook not found")

type ChatRequest struct {
	NotebookID string `json:"notebook_id"`
	UserID     string `json:"user_id"`
	Message    string `json:"message"`
}

type ChatResponse struct {
	Response      string            `json:"response"`
	Citations     []models.Citation `json:"citations"`
	MemorySummary string            `json:"memory_summary"`
	KeyFacts      []string          `json:"key_facts"`
	Outcome       rag.Outcome       `json:"outcome"`
}

// ChatService orchestrates one chat turn: scope resolution, query embedding,
// retrieval, context assembly, generation, citations, and the memory update.
// All steps within a turn run sequentially; each depends on the previous.
type ChatService struct {
	store        core.Store
	queryEmbed   *rag.QueryEmbedder
	retriever    *rag.Retriever
	generator    *rag.Generator
	memory       *rag.MemoryManager
	historyLimit int
	logger       *zap.Logger
}

func NewChatService(
	store core.Store,
	queryEmbed *rag.QueryEmbedder,
	retriever *rag.Retriever,
	generator *rag.Generator,
	memory *rag.MemoryManager,
	historyLimit int,
	logger *zap.Logger,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store:        store,
		queryEmbed:   queryEmbed,
		retriever:    retriever,
		generator:    generator,
		memory:       memory,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// ProcessTurn runs the full query pipeline for one user message.
//
// Provider failures mid-pipeline degrade the response rather than erroring
// out: the caller always gets a well-formed ChatResponse whose Outcome tag
// says whether it was answered normally, in fallback mode, or not at all.
// Validation problems (unknown notebook) surface as errors and nothing is
// persisted.
func (s *ChatService) ProcessTurn(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	nb, err := s.store.GetNotebookByID(ctx, req.NotebookID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get notebook: %w", err)
	}
	if nb == nil {
		return nil, ErrNotebookNotFound
	}

	bookIDs, err := s.resolveScope(ctx, nb)
	if err != nil {
		return nil, fmt.Errorf("resolve notebook scope: %w", err)
	}
	if len(bookIDs) == 0 {
		return &ChatResponse{
			Response:      noDocumentsMessage,
			Citations:     []models.Citation{},
			MemorySummary: nb.MemorySummary,
			KeyFacts:      nb.KeyFacts,
			Outcome:       rag.OutcomeOK,
		}, nil
	}

	embedRes := s.queryEmbed.Embed(ctx, req.Message)
	if embedRes.Outcome == rag.OutcomeFailed {
		return s.failedResponse(nb), nil
	}

	matches, err := s.retriever.Search(ctx, embedRes.Vector, bookIDs)
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		return s.failedResponse(nb), nil
	}
	if len(matches) == 0 {
		return &ChatResponse{
			Response:      noMatchesMessage,
			Citations:     []models.Citation{},
			MemorySummary: nb.MemorySummary,
			KeyFacts:      nb.KeyFacts,
			Outcome:       embedRes.Outcome,
		}, nil
	}

	contextBlob := rag.BuildContext(matches)

	history, err := s.store.GetChatHistory(ctx, req.NotebookID, s.historyLimit)
	if err != nil {
		s.logger.Warn("loading chat history failed, continuing without it", zap.Error(err))
		history = nil
	}

	genRes := s.generator.Generate(ctx, req.Message, contextBlob, formatHistory(history))

	citations := []models.Citation{}
	if genRes.Outcome == rag.OutcomeOK {
		citations = rag.ExtractCitations(matches)
	}

	summary := nb.MemorySummary
	facts := nb.KeyFacts
	if genRes.Outcome == rag.OutcomeOK {
		summary, facts = s.updateMemory(ctx, nb, req.Message, genRes.Answer)
	}

	if err := s.store.SaveChatMessage(ctx, &models.ChatMessage{
		ID:                uuid.NewString(),
		NotebookID:        req.NotebookID,
		UserMessage:       req.Message,
		AssistantResponse: genRes.Answer,
		Citations:         citations,
	}); err != nil {
		s.logger.Error("saving chat message failed", zap.Error(err))
	}

	return &ChatResponse{
		Response:      genRes.Answer,
		Citations:     citations,
		MemorySummary: summary,
		KeyFacts:      facts,
		Outcome:       rag.Worse(embedRes.Outcome, genRes.Outcome),
	}, nil
}

// resolveScope computes the notebook's effective document set: the union of
// explicitly selected books and every book whose genre is selected,
// de-duplicated, selection order preserved.
func (s *ChatService) resolveScope(ctx context.Context, nb *models.Notebook) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range nb.SelectedBooks {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, genre := range nb.SelectedGenres {
		books, err := s.store.GetBooksByGenre(ctx, genre)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			if !seen[b.ID] {
				seen[b.ID] = true
				ids = append(ids, b.ID)
			}
		}
	}
	return ids, nil
}

// updateMemory replaces the rolling summary and recomputes key facts, then
// writes both back with a compare-and-swap on the notebook's updated_at.
// A lost swap means a concurrent turn updated memory first; its write wins
// and this one is logged and skipped.
func (s *ChatService) updateMemory(ctx context.Context, nb *models.Notebook, question, answer string) (string, []string) {
	summary, err := s.memory.UpdateSummary(ctx, nb.MemorySummary, question, answer)
	if err != nil {
		// Summary unchanged on failure; keep the stored facts too.
		return nb.MemorySummary, nb.KeyFacts
	}
	facts := s.memory.ExtractKeyFacts(ctx, question, answer, nb.KeyFacts)

	swapped, err := s.store.UpdateNotebookMemory(ctx, nb.ID, summary, facts, nb.UpdatedAt)
	if err != nil {
		s.logger.Error("notebook memory update failed", zap.Error(err))
		return nb.MemorySummary, nb.KeyFacts
	}
	if !swapped {
		s.logger.Warn("notebook memory update lost a race with a concurrent turn",
			zap.String("notebook_id", nb.ID))
		return nb.MemorySummary, nb.KeyFacts
	}
	return summary, facts
}

func (s *ChatService) failedResponse(nb *models.Notebook) *ChatResponse {
	return &ChatResponse{
		Response:      rag.FallbackAnswer,
		Citations:     []models.Citation{},
		MemorySummary: nb.MemorySummary,
		KeyFacts:      nb.KeyFacts,
		Outcome:       rag.OutcomeFailed,
	}
}

// formatHistory flattens stored turns into the alternating user/assistant
// sequence the LLM expects.
func formatHistory(history []models.ChatMessage) []core.ChatTurn {
	turns := make([]core.ChatTurn, 0, len(history)*2)
	for _, msg := range history {
		turns = append(turns,
			core.ChatTurn{Role: core.RoleUser, Content: msg.UserMessage},
			core.ChatTurn{Role: core.RoleAssistant, Content: msg.AssistantResponse},
		)
	}
	return turns
}
