package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: sqlDB}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Book operations

func (c *DatabaseClient) CreateBook(ctx context.Context, book *models.Book) error {
	if book == nil {
		return errors.New("nil book")
	}
	const q = `
		INSERT INTO books (id, title, author, genre, file_path, total_pages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		book.ID, book.Title, book.Author, string(book.Genre), book.FilePath, book.TotalPages)
	return err
}

func (c *DatabaseClient) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	const q = `
		SELECT id, title, author, genre, file_path, total_pages, created_at, updated_at
		FROM books WHERE id = $1
	`
	var b models.Book
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.FilePath, &b.TotalPages, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *DatabaseClient) GetBooksByIDs(ctx context.Context, ids []string) ([]models.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `
		SELECT id, title, author, genre, file_path, total_pages, created_at, updated_at
		FROM books WHERE id = ANY($1)
	`
	rows, err := c.db.QueryContext(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBooks(rows)
}

func (c *DatabaseClient) GetBooksByGenre(ctx context.Context, genre models.Genre) ([]models.Book, error) {
	const q = `
		SELECT id, title, author, genre, file_path, total_pages, created_at, updated_at
		FROM books WHERE genre = $1
	`
	rows, err := c.db.QueryContext(ctx, q, string(genre))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBooks(rows)
}

func (c *DatabaseClient) ListBooks(ctx context.Context) ([]models.Book, error) {
	const q = `
		SELECT id, title, author, genre, file_path, total_pages, created_at, updated_at
		FROM books ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBooks(rows)
}

// DeleteBook removes the book row; document_chunks cascade.
func (c *DatabaseClient) DeleteBook(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	return err
}

func scanBooks(rows *sql.Rows) ([]models.Book, error) {
	var out []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &b.Genre, &b.FilePath, &b.TotalPages, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Chunk operations

// InsertChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, book_id, content, page_start, page_end, chunk_index, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		vec := pgvector.NewVector(ch.Embedding)

		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.BookID, ch.Content, ch.PageStart, ch.PageEnd, ch.ChunkIndex, vec, meta,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchChunks finds the top-k most similar chunks within the candidate
// books for a query embedding. Similarity is 1 - cosine distance.
func (c *DatabaseClient) SearchChunks(ctx context.Context, queryVec []float32, bookIDs []string, topK int) ([]models.ChunkMatch, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}
	const q = `
		SELECT id, book_id, content, page_start, page_end, chunk_index, metadata,
		       1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE book_id = ANY($2)
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, vec, bookIDs, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChunkMatch
	for rows.Next() {
		var (
			m    models.ChunkMatch
			meta []byte
		)
		if err := rows.Scan(
			&m.Chunk.ID, &m.Chunk.BookID, &m.Chunk.Content,
			&m.Chunk.PageStart, &m.Chunk.PageEnd, &m.Chunk.ChunkIndex,
			&meta, &m.Similarity,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Notebook operations

func (c *DatabaseClient) CreateNotebook(ctx context.Context, nb *models.Notebook) error {
	if nb == nil {
		return errors.New("nil notebook")
	}
	books, err := json.Marshal(emptyIfNil(nb.SelectedBooks))
	if err != nil {
		return err
	}
	selectedGenres := nb.SelectedGenres
	if selectedGenres == nil {
		selectedGenres = []models.Genre{}
	}
	genres, err := json.Marshal(selectedGenres)
	if err != nil {
		return err
	}
	facts, err := json.Marshal(emptyIfNil(nb.KeyFacts))
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO notebooks
			(id, user_id, name, selected_books, selected_genres, memory_summary, key_facts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err = c.db.ExecContext(ctx, q,
		nb.ID, nb.UserID, nb.Name, books, genres, nb.MemorySummary, facts)
	return err
}

// GetNotebookByID fetches a notebook, optionally filtered by owner. An empty
// userID skips the ownership filter.
func (c *DatabaseClient) GetNotebookByID(ctx context.Context, id, userID string) (*models.Notebook, error) {
	q := `
		SELECT id, user_id, name, selected_books, selected_genres, memory_summary, key_facts, created_at, updated_at
		FROM notebooks WHERE id = $1
	`
	args := []any{id}
	if userID != "" {
		q += ` AND user_id = $2`
		args = append(args, userID)
	}

	row := c.db.QueryRowContext(ctx, q, args...)
	nb, err := scanNotebook(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nb, nil
}

func (c *DatabaseClient) ListNotebooksByUser(ctx context.Context, userID string) ([]models.Notebook, error) {
	const q = `
		SELECT id, user_id, name, selected_books, selected_genres, memory_summary, key_facts, created_at, updated_at
		FROM notebooks
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notebook
	for rows.Next() {
		nb, err := scanNotebook(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *nb)
	}
	return out, rows.Err()
}

func scanNotebook(scan func(dest ...any) error) (*models.Notebook, error) {
	var (
		nb     models.Notebook
		books  []byte
		genres []byte
		facts  []byte
	)
	if err := scan(
		&nb.ID, &nb.UserID, &nb.Name, &books, &genres, &nb.MemorySummary, &facts, &nb.CreatedAt, &nb.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(books, &nb.SelectedBooks); err != nil {
		return nil, fmt.Errorf("unmarshal selected_books: %w", err)
	}
	if err := json.Unmarshal(genres, &nb.SelectedGenres); err != nil {
		return nil, fmt.Errorf("unmarshal selected_genres: %w", err)
	}
	if err := json.Unmarshal(facts, &nb.KeyFacts); err != nil {
		return nil, fmt.Errorf("unmarshal key_facts: %w", err)
	}
	return &nb, nil
}

// UpdateNotebookMemory writes the new summary and key facts only when
// updated_at still matches expect. Returns false when the swap lost a race
// with a concurrent turn.
func (c *DatabaseClient) UpdateNotebookMemory(ctx context.Context, id, summary string, facts []string, expect time.Time) (bool, error) {
	factsJSON, err := json.Marshal(emptyIfNil(facts))
	if err != nil {
		return false, err
	}
	const q = `
		UPDATE notebooks
		SET memory_summary = $2, key_facts = $3, updated_at = now()
		WHERE id = $1 AND updated_at = $4
	`
	res, err := c.db.ExecContext(ctx, q, id, summary, factsJSON, expect)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Chat operations

func (c *DatabaseClient) SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg == nil {
		return errors.New("nil chat message")
	}
	citations, err := json.Marshal(msg.Citations)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO chat_messages (id, notebook_id, user_message, assistant_response, citations, timestamp)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	_, err = c.db.ExecContext(ctx, q,
		msg.ID, msg.NotebookID, msg.UserMessage, msg.AssistantResponse, citations)
	return err
}

// GetChatHistory returns the most recent turns in chronological order.
func (c *DatabaseClient) GetChatHistory(ctx context.Context, notebookID string, limit int) ([]models.ChatMessage, error) {
	const q = `
		SELECT id, notebook_id, user_message, assistant_response, citations, timestamp
		FROM (
			SELECT id, notebook_id, user_message, assistant_response, citations, timestamp
			FROM chat_messages
			WHERE notebook_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`
	rows, err := c.db.QueryContext(ctx, q, notebookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m         models.ChatMessage
			citations []byte
		)
		if err := rows.Scan(
			&m.ID, &m.NotebookID, &m.UserMessage, &m.AssistantResponse, &citations, &m.Timestamp,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(citations, &m.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
