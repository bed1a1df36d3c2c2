package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/core/ingestion"
	"github.com/insidelm/backend/internal/models"
	"github.com/insidelm/backend/internal/services"
)

const maxUploadSize = 50 << 20 // 50 MB

type DocumentHandler struct {
	ingest       *services.IngestService
	objectclient core.ObjectClient
	cfg          *config.Config
	logger       *zap.Logger
}

// NewDocumentHandler wires the ingestion endpoints. objectclient may be nil;
// uploads then stay on local disk under cfg.UploadDir.
func NewDocumentHandler(ingest *services.IngestService, objectclient core.ObjectClient, cfg *config.Config, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, objectclient: objectclient, cfg: cfg, logger: logger}
}

// Ingest accepts a multipart PDF upload with optional title/author/genre
// fields, archives the original file, and runs the full pipeline before
// responding.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	// Reject junk before anything is archived.
	if !ingestion.IsPDF(data) {
		respondError(w, http.StatusBadRequest, "uploaded file is not a PDF")
		return
	}

	cleanName := filepath.Base(header.Filename)
	storedPath, err := h.archiveOriginal(r, cleanName, data)
	if err != nil {
		h.logger.Error("archiving upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "storing upload failed")
		return
	}

	req := services.IngestRequest{
		FilePath: storedPath,
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		Genre:    models.Genre(r.FormValue("genre")),
	}

	result, err := h.ingest.IngestBytes(r.Context(), data, req)
	if err != nil {
		h.logger.Error("ingestion failed", zap.String("file", cleanName), zap.Error(err))
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// archiveOriginal keeps the uploaded PDF around for re-ingestion: in the
// object store when one is configured, otherwise in the local upload dir.
func (h *DocumentHandler) archiveOriginal(r *http.Request, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s", uuid.NewString(), filename)

	if h.objectclient != nil {
		url, err := h.objectclient.UploadFile(r.Context(), h.cfg.BucketName, key, data, "application/pdf")
		if err != nil {
			return "", err
		}
		return url, nil
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.cfg.UploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// GetBookFile serves the archived source PDF for a book, from the object
// store when the book was uploaded there, from local disk otherwise.
func (h *DocumentHandler) GetBookFile(w http.ResponseWriter, r *http.Request) {
	book, ok := h.lookupBook(w, r)
	if !ok {
		return
	}

	var data []byte
	if bucket, key, isObject := parseObjectURL(book.FilePath); isObject {
		if h.objectclient == nil {
			respondError(w, http.StatusServiceUnavailable, "object storage not configured")
			return
		}
		var err error
		data, err = h.objectclient.GetFile(r.Context(), bucket, key)
		if err != nil {
			h.logger.Error("fetching archived file failed", zap.String("book_id", book.ID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "fetching file failed")
			return
		}
	} else {
		var err error
		data, err = os.ReadFile(book.FilePath)
		if err != nil {
			respondError(w, http.StatusNotFound, "archived file not available")
			return
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(data)
}

// DeleteBook removes a book with its chunks and, best effort, its archived
// source file.
func (h *DocumentHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.lookupBook(w, r)
	if !ok {
		return
	}

	if err := h.ingest.DeleteBook(r.Context(), book.ID); err != nil {
		h.logger.Error("deleting book failed", zap.String("book_id", book.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.removeArchive(r.Context(), book.FilePath); err != nil {
		h.logger.Warn("removing archived file failed",
			zap.String("book_id", book.ID), zap.String("path", book.FilePath), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": book.ID, "status": "deleted"})
}

func (h *DocumentHandler) lookupBook(w http.ResponseWriter, r *http.Request) (*models.Book, bool) {
	id := chi.URLParam(r, "id")
	book, err := h.ingest.GetBook(r.Context(), id)
	if err != nil {
		h.logger.Error("book lookup failed", zap.String("book_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if book == nil {
		respondError(w, http.StatusNotFound, "book not found")
		return nil, false
	}
	return book, true
}

// removeArchive deletes the archived source file. Object URLs go through the
// object client; local paths are removed only when they live under the
// upload dir, so ingest sources outside it are never touched.
func (h *DocumentHandler) removeArchive(ctx context.Context, path string) error {
	if bucket, key, isObject := parseObjectURL(path); isObject {
		if h.objectclient == nil {
			return nil
		}
		return h.objectclient.DeleteFile(ctx, bucket, key)
	}
	uploadRoot := filepath.Clean(h.cfg.UploadDir) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(path), uploadRoot) {
		return nil
	}
	return os.Remove(path)
}

// parseObjectURL extracts bucket and key from the virtual-hosted S3 URLs
// produced at upload time.
func parseObjectURL(raw string) (bucket, key string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return "", "", false
	}
	idx := strings.Index(u.Host, ".s3.")
	if idx <= 0 {
		return "", "", false
	}
	return u.Host[:idx], strings.TrimPrefix(u.Path, "/"), true
}

// IngestBatch runs a JSON manifest of server-local files through the
// pipeline sequentially and reports per-document outcomes.
func (h *DocumentHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var manifest services.Manifest
	if err := json.NewDecoder(r.Body).Decode(&manifest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(manifest.Documents) == 0 {
		respondError(w, http.StatusBadRequest, "documents list is empty")
		return
	}

	results := h.ingest.IngestBatch(r.Context(), manifest.Documents)
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}
