package models

import (
	"time"
)

// Genre classifies a book for notebook scoping.
type Genre string

const (
	GenreHistory    Genre = "history"
	GenreScience    Genre = "science"
	GenreLiterature Genre = "literature"
	GenrePhilosophy Genre = "philosophy"
	GenreTechnology Genre = "technology"
	GenreOther      Genre = "other"
)

// Valid reports whether g is one of the known genres.
func (g Genre) Valid() bool {
	switch g {
	case GenreHistory, GenreScience, GenreLiterature, GenrePhilosophy, GenreTechnology, GenreOther:
		return true
	}
	return false
}

// Book represents one ingested document. Created once at ingestion time;
// only metadata corrections mutate it afterwards.
type Book struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Author     string    `db:"author" json:"author"`
	Genre      Genre     `db:"genre" json:"genre"`
	FilePath   string    `db:"file_path" json:"file_path"`
	TotalPages int       `db:"total_pages" json:"total_pages"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk is one embedded text segment from a book page.
// Chunks are inserted in bulk at ingestion and never mutated; ChunkIndex is
// contiguous per book in emission order.
type DocumentChunk struct {
	ID         string         `db:"id" json:"id"`
	BookID     string         `db:"book_id" json:"book_id"`
	Content    string         `db:"content" json:"content"`
	PageStart  int            `db:"page_start" json:"page_start"`
	PageEnd    int            `db:"page_end" json:"page_end"`
	ChunkIndex int            `db:"chunk_index" json:"chunk_index"`
	Embedding  []float32      `db:"embedding" json:"embedding"` // pgvector column, fixed dimension
	Metadata   map[string]any `db:"metadata" json:"metadata"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ChunkMatch is a retrieval result: a chunk plus its similarity score and
// best-effort book attribution resolved after the vector search.
type ChunkMatch struct {
	Chunk      DocumentChunk `json:"chunk"`
	Similarity float64       `json:"similarity"`
	BookTitle  string        `json:"book_title"`
	BookAuthor string        `json:"book_author"`
}

// Notebook binds a conversation to a set of books and/or genres and carries
// the rolling memory for that conversation. MemorySummary and KeyFacts are
// the only fields that mutate after creation.
type Notebook struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	SelectedBooks  []string  `db:"selected_books" json:"selected_books"`
	SelectedGenres []Genre   `db:"selected_genres" json:"selected_genres"`
	MemorySummary  string    `db:"memory_summary" json:"memory_summary"`
	KeyFacts       []string  `db:"key_facts" json:"key_facts"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMessage is one completed turn. Append-only.
type ChatMessage struct {
	ID                string     `db:"id" json:"id"`
	NotebookID        string     `db:"notebook_id" json:"notebook_id"`
	UserMessage       string     `db:"user_message" json:"user_message"`
	AssistantResponse string     `db:"assistant_response" json:"assistant_response"`
	Citations         []Citation `db:"citations" json:"citations"`
	Timestamp         time.Time  `db:"timestamp" json:"timestamp"`
}

// Citation points a reader at the source passage behind part of an answer.
// Derived from the retrieved chunks per turn; not persisted on its own.
// Page fields are strings so an unknown page can render as "?".
type Citation struct {
	BookTitle      string `json:"book_title"`
	BookAuthor     string `json:"book_author"`
	PageStart      string `json:"page_start"`
	PageEnd        string `json:"page_end"`
	ContentPreview string `json:"content_preview"`
}
