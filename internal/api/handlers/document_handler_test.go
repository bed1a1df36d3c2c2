package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/core/coretest"
	"github.com/insidelm/backend/internal/core/ingestion"
	"github.com/insidelm/backend/internal/models"
	"github.com/insidelm/backend/internal/services"
)

var pdfBytes = []byte("%PDF-1.7 fake body")

type fakePages struct{}

func (fakePages) ExtractPages(_ []byte) ([]ingestion.Page, error) {
	return []ingestion.Page{{Text: "page content", Number: 1}}, nil
}

func newDocumentFixture(t *testing.T, obj core.ObjectClient) (*DocumentHandler, *coretest.FakeStore, *config.Config) {
	t.Helper()
	store := coretest.NewFakeStore()
	svc := services.NewIngestService(store, coretest.NewFakeEmbedder(8), fakePages{}, ingestion.NewChunker(1000, 100), 0, nil)
	cfg := &config.Config{UploadDir: t.TempDir(), BucketName: "docs"}
	return NewDocumentHandler(svc, obj, cfg, zap.NewNop()), store, cfg
}

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIngestRejectsNonPDFBeforeArchiving(t *testing.T) {
	h, store, cfg := newDocumentFixture(t, nil)

	rec := httptest.NewRecorder()
	h.Ingest(rec, multipartUpload(t, "junk.pdf", []byte("plain text, no header")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads are never archived")
	assert.Empty(t, store.Books)
}

func TestIngestArchivesAndProcesses(t *testing.T) {
	h, store, cfg := newDocumentFixture(t, nil)

	rec := httptest.NewRecorder()
	h.Ingest(rec, multipartUpload(t, "roman.pdf", pdfBytes))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.Books, 1)
	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "accepted uploads land in the upload dir")
}

func bookRouter(h *DocumentHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/books/{id}/file", h.GetBookFile)
	r.Delete("/api/books/{id}", h.DeleteBook)
	return r
}

func TestDeleteBookRemovesObjectArchive(t *testing.T) {
	obj := coretest.NewFakeObjectClient()
	h, store, _ := newDocumentFixture(t, obj)

	url, err := obj.UploadFile(context.Background(), "docs", "abc/roman.pdf", pdfBytes, "application/pdf")
	require.NoError(t, err)
	store.Books["b1"] = models.Book{ID: "b1", Title: "Roman", FilePath: url}
	store.Chunks = []models.DocumentChunk{{ID: "c1", BookID: "b1", Content: "x"}}

	rec := httptest.NewRecorder()
	bookRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/books/b1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.Books)
	assert.Empty(t, store.Chunks, "chunks go with the book")
	assert.Equal(t, []string{"docs/abc/roman.pdf"}, obj.Deletes)
}

func TestDeleteBookRemovesLocalArchive(t *testing.T) {
	h, store, cfg := newDocumentFixture(t, nil)

	path := filepath.Join(cfg.UploadDir, "roman.pdf")
	require.NoError(t, os.WriteFile(path, pdfBytes, 0o644))
	store.Books["b1"] = models.Book{ID: "b1", Title: "Roman", FilePath: path}

	rec := httptest.NewRecorder()
	bookRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/books/b1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "local archive removed")
}

func TestDeleteBookLeavesOutsidePathsAlone(t *testing.T) {
	h, store, _ := newDocumentFixture(t, nil)

	outside := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(outside, pdfBytes, 0o644))
	store.Books["b1"] = models.Book{ID: "b1", Title: "Roman", FilePath: outside}

	rec := httptest.NewRecorder()
	bookRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/books/b1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(outside)
	assert.NoError(t, err, "files outside the upload dir are never removed")
}

func TestGetBookFileFromObjectStore(t *testing.T) {
	obj := coretest.NewFakeObjectClient()
	h, store, _ := newDocumentFixture(t, obj)

	url, err := obj.UploadFile(context.Background(), "docs", "abc/roman.pdf", pdfBytes, "application/pdf")
	require.NoError(t, err)
	store.Books["b1"] = models.Book{ID: "b1", Title: "Roman", FilePath: url}

	rec := httptest.NewRecorder()
	bookRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/b1/file", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, pdfBytes, rec.Body.Bytes())
}

func TestGetBookFileUnknownBook(t *testing.T) {
	h, _, _ := newDocumentFixture(t, nil)

	rec := httptest.NewRecorder()
	bookRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/ghost/file", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseObjectURL(t *testing.T) {
	bucket, key, ok := parseObjectURL("https://docs.s3.us-east-2.amazonaws.com/abc/roman.pdf")
	require.True(t, ok)
	assert.Equal(t, "docs", bucket)
	assert.Equal(t, "abc/roman.pdf", key)

	_, _, ok = parseObjectURL("uploads/abc/roman.pdf")
	assert.False(t, ok)
	_, _, ok = parseObjectURL("https://example.com/file.pdf")
	assert.False(t, ok)
}
