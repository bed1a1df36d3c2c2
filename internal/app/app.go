package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
	db "github.com/insidelm/backend/internal/core/database"
	"github.com/insidelm/backend/internal/core/ingestion"
	"github.com/insidelm/backend/internal/core/llm"
	"github.com/insidelm/backend/internal/core/objectclient"
	"github.com/insidelm/backend/internal/core/rag"
	"github.com/insidelm/backend/internal/services"
)

// App assembles every component from config and owns their lifecycles.
type App struct {
	Store    core.Store
	Chat     *services.ChatService
	Notebook *services.NotebookService
	Ingest   *services.IngestService
	Server   *Server

	logger *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	logger.Info("database initialized and ready")

	var objClient core.ObjectClient
	if cfg.ObjectStorageEnabled() {
		s3, err := objectclient.NewS3Client(initCtx, cfg, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("object storage init: %w", err)
		}
		objClient = s3
		logger.Info("object storage initialized", zap.String("bucket", cfg.BucketName))
	} else {
		logger.Info("object storage not configured, uploads stay on local disk",
			zap.String("dir", cfg.UploadDir))
	}

	embedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedder init: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("llm init: %w", err)
	}

	extractor := ingestion.NewPDFExtractor(logger)
	chunker := ingestion.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)

	queryEmbed := rag.NewQueryEmbedder(embedder, cfg.EmbedDim, cfg.QueryEmbedFallback, logger)
	retriever := rag.NewRetriever(store, cfg.TopK, logger)
	generator := rag.NewGenerator(llmProvider, logger)
	memory := rag.NewMemoryManager(llmProvider, cfg.KeyFactsPolicy, logger)

	chatSvc := services.NewChatService(store, queryEmbed, retriever, generator, memory, cfg.HistoryLimit, logger)
	notebookSvc := services.NewNotebookService(store, cfg.HistoryLimit, logger)
	ingestSvc := services.NewIngestService(store, embedder, extractor, chunker, cfg.IngestPause, logger)

	server := NewServer(cfg, chatSvc, notebookSvc, ingestSvc, objClient, logger)

	return &App{
		Store:    store,
		Chat:     chatSvc,
		Notebook: notebookSvc,
		Ingest:   ingestSvc,
		Server:   server,
		logger:   logger,
	}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn("closing store failed", zap.Error(err))
		}
	}
}
