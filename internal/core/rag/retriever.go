package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/models"
)

// Retriever runs the scoped similarity search and normalizes the result
// shape. Similarity ordering and the index structure belong to the store;
// the retriever owns scoping, the top-k bound and book attribution.
type Retriever struct {
	store  core.Store
	topK   int
	logger *zap.Logger
}

func NewRetriever(store core.Store, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, topK: topK, logger: logger}
}

// Search returns the top-k chunk matches within the candidate books, most
// similar first. An empty candidate set short-circuits to an empty result
// without touching the store; an unscoped full-corpus search is never issued.
func (r *Retriever) Search(ctx context.Context, queryVec []float32, bookIDs []string) ([]models.ChunkMatch, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}

	matches, err := r.store.SearchChunks(ctx, queryVec, bookIDs, r.topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	r.attachBooks(ctx, matches)
	return matches, nil
}

// attachBooks fills in book title/author with one batched lookup over the
// distinct book ids in the result set. Best effort: a lookup failure leaves
// the attribution empty rather than failing the turn.
func (r *Retriever) attachBooks(ctx context.Context, matches []models.ChunkMatch) {
	seen := make(map[string]bool)
	var ids []string
	for i := range matches {
		id := matches[i].Chunk.BookID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	books, err := r.store.GetBooksByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn("book lookup for retrieval results failed", zap.Error(err))
		return
	}

	byID := make(map[string]models.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	for i := range matches {
		if b, ok := byID[matches[i].Chunk.BookID]; ok {
			matches[i].BookTitle = b.Title
			matches[i].BookAuthor = b.Author
		}
	}
}
