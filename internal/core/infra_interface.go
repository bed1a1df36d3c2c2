package core

import (
	"context"
	"time"

	"github.com/insidelm/backend/internal/models"
)

// Store defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type Store interface {
	CreateBook(ctx context.Context, book *models.Book) error
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
	GetBooksByIDs(ctx context.Context, ids []string) ([]models.Book, error)
	GetBooksByGenre(ctx context.Context, genre models.Genre) ([]models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)

	// DeleteBook removes a book and, via cascade, its chunks.
	DeleteBook(ctx context.Context, id string) error

	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error

	// SearchChunks runs a scoped nearest-neighbor search. bookIDs constrains
	// the search; topK bounds the result count. Results come back ordered by
	// descending similarity.
	SearchChunks(ctx context.Context, queryVec []float32, bookIDs []string, topK int) ([]models.ChunkMatch, error)

	CreateNotebook(ctx context.Context, nb *models.Notebook) error
	GetNotebookByID(ctx context.Context, id, userID string) (*models.Notebook, error)
	ListNotebooksByUser(ctx context.Context, userID string) ([]models.Notebook, error)

	// UpdateNotebookMemory is a compare-and-swap: the write only lands when
	// the notebook's updated_at still equals expect. Returns false when
	// another writer got there first.
	UpdateNotebookMemory(ctx context.Context, id, summary string, facts []string, expect time.Time) (bool, error)

	SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error
	GetChatHistory(ctx context.Context, notebookID string, limit int) ([]models.ChatMessage, error)

	Close() error
}

// EmbeddingProvider maps texts to fixed-dimension dense vectors,
// order-preserving, batchable.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Roles for chat turns sent to the LLM.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message in the sequence handed to the LLM provider.
type ChatTurn struct {
	Role    string
	Content string
}

// LLMProvider is a single-shot completion client: system instructions plus a
// message sequence in, answer text out. No streaming.
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt string, turns []ChatTurn) (string, error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
