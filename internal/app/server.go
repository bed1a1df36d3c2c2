package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/api/handlers"
	"github.com/insidelm/backend/internal/config"
	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	chatSvc *services.ChatService,
	notebookSvc *services.NotebookService,
	ingestSvc *services.IngestService,
	objClient core.ObjectClient,
	logger *zap.Logger,
) *Server {
	chatHandler := handlers.NewChatHandler(chatSvc, logger)
	notebookHandler := handlers.NewNotebookHandler(notebookSvc, logger)
	docHandler := handlers.NewDocumentHandler(ingestSvc, objClient, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", chatHandler.Chat)

		api.Post("/notebooks", notebookHandler.Create)
		api.Get("/notebooks/{id}", notebookHandler.Get)
		api.Get("/notebooks/user/{userID}", notebookHandler.ListByUser)

		api.Get("/books", notebookHandler.ListBooks)
		api.Get("/books/{id}/file", docHandler.GetBookFile)
		api.Delete("/books/{id}", docHandler.DeleteBook)

		api.Post("/documents/ingest", docHandler.Ingest)
		api.Post("/documents/ingest-batch", docHandler.IngestBatch)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
