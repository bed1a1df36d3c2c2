package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/core/ingestion"
	"github.com/insidelm/backend/internal/models"
)

const (
	embedBatchSize = 100

	defaultAuthor = "Unknown Author"
)

// PageExtractor turns raw PDF bytes into per-page text.
type PageExtractor interface {
	ExtractPages(data []byte) ([]ingestion.Page, error)
}

type IngestRequest struct {
	FilePath string       `json:"file_path"`
	Title    string       `json:"title"`
	Author   string       `json:"author"`
	Genre    models.Genre `json:"genre"`
}

type IngestResult struct {
	BookID        string `json:"book_id"`
	Title         string `json:"title"`
	ChunksCreated int    `json:"chunks_created"`
	TotalPages    int    `json:"total_pages"`
}

// BatchResult reports one document's fate in a batch run. A failed document
// never aborts the batch.
type BatchResult struct {
	FilePath      string `json:"file_path"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	BookID        string `json:"book_id,omitempty"`
	ChunksCreated int    `json:"chunks_created,omitempty"`
	TotalPages    int    `json:"total_pages,omitempty"`
}

// Manifest is the batch-ingestion input file format.
type Manifest struct {
	Documents []IngestRequest `json:"documents"`
}

// IngestService runs the write side of the pipeline: extract pages, chunk,
// embed, and store book plus chunks.
type IngestService struct {
	store     core.Store
	embedder  core.EmbeddingProvider
	extractor PageExtractor
	chunker   *ingestion.Chunker
	pause     time.Duration
	logger    *zap.Logger
}

func NewIngestService(
	store core.Store,
	embedder core.EmbeddingProvider,
	extractor PageExtractor,
	chunker *ingestion.Chunker,
	pause time.Duration,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		pause:     pause,
		logger:    logger,
	}
}

// IngestBytes processes one PDF already in memory. Metadata defaults: title
// falls back to the file name stem, author to "Unknown Author", genre to
// "other". The book row and its chunks land together; a failure at any stage
// stores nothing new beyond what already committed.
func (s *IngestService) IngestBytes(ctx context.Context, data []byte, req IngestRequest) (*IngestResult, error) {
	if !ingestion.IsPDF(data) {
		return nil, fmt.Errorf("%s is not a PDF", req.FilePath)
	}

	pages, err := s.extractor.ExtractPages(data)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", req.FilePath)
	}

	records, err := s.chunker.ChunkPages(pages)
	if err != nil {
		return nil, fmt.Errorf("chunk pages: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no chunks produced from %s", req.FilePath)
	}

	title := req.Title
	if title == "" {
		base := filepath.Base(req.FilePath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	author := req.Author
	if author == "" {
		author = defaultAuthor
	}
	genre := req.Genre
	if genre == "" {
		genre = models.GenreOther
	}
	if !genre.Valid() {
		return nil, fmt.Errorf("unknown genre %q", genre)
	}

	totalPages := 0
	for _, r := range records {
		if r.PageEnd > totalPages {
			totalPages = r.PageEnd
		}
	}

	book := &models.Book{
		ID:         uuid.NewString(),
		Title:      title,
		Author:     author,
		Genre:      genre,
		FilePath:   req.FilePath,
		TotalPages: totalPages,
	}
	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	chunks := make([]models.DocumentChunk, len(records))
	for i, r := range records {
		chunks[i] = models.DocumentChunk{
			ID:         uuid.NewString(),
			BookID:     book.ID,
			Content:    r.Content,
			PageStart:  r.PageStart,
			PageEnd:    r.PageEnd,
			ChunkIndex: r.ChunkIndex,
			Metadata:   r.Metadata,
		}
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	if err := s.store.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}

	s.logger.Info("ingested document",
		zap.String("book_id", book.ID),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)),
		zap.Int("pages", totalPages))

	return &IngestResult{
		BookID:        book.ID,
		Title:         title,
		ChunksCreated: len(chunks),
		TotalPages:    totalPages,
	}, nil
}

// embedChunks fills in Embedding for every chunk, batching provider calls.
func (s *IngestService) embedChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}
		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = vectors[i-start]
		}
	}
	return nil
}

// IngestFile reads one PDF from disk and ingests it.
func (s *IngestService) IngestFile(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if !strings.EqualFold(filepath.Ext(req.FilePath), ".pdf") {
		return nil, fmt.Errorf("%s is not a PDF file", req.FilePath)
	}
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.FilePath, err)
	}
	return s.IngestBytes(ctx, data, req)
}

// IngestBatch processes documents sequentially with a pause between them to
// stay under embedding-provider rate limits. Each document gets a result
// record whether it succeeded or not.
func (s *IngestService) IngestBatch(ctx context.Context, docs []IngestRequest) []BatchResult {
	results := make([]BatchResult, 0, len(docs))
	for i, doc := range docs {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				results = append(results, BatchResult{
					FilePath: doc.FilePath,
					Status:   "error",
					Message:  ctx.Err().Error(),
				})
				continue
			case <-time.After(s.pause):
			}
		}

		res, err := s.IngestFile(ctx, doc)
		if err != nil {
			s.logger.Error("batch document failed",
				zap.String("file", doc.FilePath), zap.Error(err))
			results = append(results, BatchResult{
				FilePath: doc.FilePath,
				Status:   "error",
				Message:  err.Error(),
			})
			continue
		}
		results = append(results, BatchResult{
			FilePath:      doc.FilePath,
			Status:        "success",
			BookID:        res.BookID,
			ChunksCreated: res.ChunksCreated,
			TotalPages:    res.TotalPages,
		})
	}
	return results
}

// IngestDirectory ingests every *.pdf in dir (non-recursive), deriving
// titles from file names. genre applies to all documents; empty means
// "other".
func (s *IngestService) IngestDirectory(ctx context.Context, dir string, genre models.Genre) ([]BatchResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no PDF files in %s", dir)
	}
	docs := make([]IngestRequest, len(paths))
	for i, p := range paths {
		docs[i] = IngestRequest{FilePath: p, Genre: genre}
	}
	return s.IngestBatch(ctx, docs), nil
}

// GetBook returns the book, or nil when it does not exist.
func (s *IngestService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return s.store.GetBookByID(ctx, id)
}

// DeleteBook removes the book and its chunks from the store.
func (s *IngestService) DeleteBook(ctx context.Context, id string) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	s.logger.Info("deleted book", zap.String("book_id", id))
	return nil
}

// LoadManifest parses a batch manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Documents) == 0 {
		return nil, fmt.Errorf("manifest lists no documents")
	}
	return &m, nil
}
