package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insidelm/backend/internal/core/coretest"
	"github.com/insidelm/backend/internal/core/ingestion"
	"github.com/insidelm/backend/internal/models"
)

// fakeExtractor returns canned pages regardless of input, or fails.
type fakeExtractor struct {
	pages []ingestion.Page
	err   error
}

func (f *fakeExtractor) ExtractPages(_ []byte) ([]ingestion.Page, error) {
	return f.pages, f.err
}

func newIngestFixture(pages []ingestion.Page) (*IngestService, *coretest.FakeStore, *coretest.FakeEmbedder) {
	store := coretest.NewFakeStore()
	embed := coretest.NewFakeEmbedder(8)
	svc := NewIngestService(store, embed, &fakeExtractor{pages: pages}, ingestion.NewChunker(1000, 100), 0, nil)
	return svc, store, embed
}

var pdfBytes = []byte("%PDF-1.7 fake body")

func TestIngestBytesTwoPages(t *testing.T) {
	svc, store, _ := newIngestFixture([]ingestion.Page{
		{Text: "First page text.", Number: 1},
		{Text: "Second page text.", Number: 2},
	})

	res, err := svc.IngestBytes(context.Background(), pdfBytes, IngestRequest{
		FilePath: "books/history.pdf",
		Title:    "Roman History",
		Author:   "J. Smith",
		Genre:    models.GenreHistory,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ChunksCreated)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, "Roman History", res.Title)

	book, err := store.GetBookByID(context.Background(), res.BookID)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, models.GenreHistory, book.Genre)
	assert.Equal(t, 2, book.TotalPages)

	require.Len(t, store.Chunks, 2)
	assert.Equal(t, 0, store.Chunks[0].ChunkIndex)
	assert.Equal(t, 1, store.Chunks[1].ChunkIndex)
	assert.Equal(t, 1, store.Chunks[0].PageStart)
	assert.Equal(t, 2, store.Chunks[1].PageStart)
	for _, ch := range store.Chunks {
		assert.Equal(t, res.BookID, ch.BookID)
		assert.Len(t, ch.Embedding, 8, "every chunk carries an embedding")
	}
}

func TestIngestBytesMetadataDefaults(t *testing.T) {
	svc, store, _ := newIngestFixture([]ingestion.Page{{Text: "content", Number: 1}})

	res, err := svc.IngestBytes(context.Background(), pdfBytes, IngestRequest{
		FilePath: "/data/incoming/ancient-rome.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "ancient-rome", res.Title)
	book, _ := store.GetBookByID(context.Background(), res.BookID)
	require.NotNil(t, book)
	assert.Equal(t, "Unknown Author", book.Author)
	assert.Equal(t, models.GenreOther, book.Genre)
}

func TestIngestBytesRejectsNonPDF(t *testing.T) {
	svc, store, _ := newIngestFixture([]ingestion.Page{{Text: "content", Number: 1}})

	_, err := svc.IngestBytes(context.Background(), []byte("plain text"), IngestRequest{FilePath: "x.pdf"})
	assert.Error(t, err)
	assert.Empty(t, store.Books)
}

func TestIngestBytesEmbedderFailure(t *testing.T) {
	svc, store, embed := newIngestFixture([]ingestion.Page{{Text: "content", Number: 1}})
	embed.Err = errors.New("quota exceeded")

	_, err := svc.IngestBytes(context.Background(), pdfBytes, IngestRequest{FilePath: "x.pdf"})
	assert.Error(t, err)
	assert.Empty(t, store.Chunks, "no chunks stored without embeddings")
}

func TestIngestBytesUnknownGenre(t *testing.T) {
	svc, _, _ := newIngestFixture([]ingestion.Page{{Text: "content", Number: 1}})

	_, err := svc.IngestBytes(context.Background(), pdfBytes, IngestRequest{
		FilePath: "x.pdf", Genre: models.Genre("thriller"),
	})
	assert.Error(t, err)
}

func TestIngestBatchContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	good1 := filepath.Join(dir, "one.pdf")
	good2 := filepath.Join(dir, "two.pdf")
	require.NoError(t, os.WriteFile(good1, pdfBytes, 0o644))
	require.NoError(t, os.WriteFile(good2, pdfBytes, 0o644))
	missing := filepath.Join(dir, "does-not-exist.pdf")

	svc, store, _ := newIngestFixture([]ingestion.Page{{Text: "content", Number: 1}})

	results := svc.IngestBatch(context.Background(), []IngestRequest{
		{FilePath: good1, Genre: models.GenreHistory},
		{FilePath: missing},
		{FilePath: good2, Genre: models.GenreScience},
	})
	require.Len(t, results, 3, "one result per manifest entry")

	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "error", results[1].Status)
	assert.NotEmpty(t, results[1].Message)
	assert.Equal(t, "success", results[2].Status)

	assert.Len(t, store.Books, 2, "failed entry stores nothing")
}

func TestIngestFileRejectsNonPDFExtension(t *testing.T) {
	svc, _, _ := newIngestFixture(nil)

	_, err := svc.IngestFile(context.Background(), IngestRequest{FilePath: "notes.txt"})
	assert.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"documents":[{"file_path":"a.pdf","title":"A","genre":"history"}]}`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, "a.pdf", m.Documents[0].FilePath)
	assert.Equal(t, models.GenreHistory, m.Documents[0].Genre)

	t.Run("empty manifest rejected", func(t *testing.T) {
		empty := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(empty, []byte(`{"documents":[]}`), 0o644))
		_, err := LoadManifest(empty)
		assert.Error(t, err)
	})
}
