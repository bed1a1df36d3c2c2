package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/insidelm/backend/internal/config"
	db "github.com/insidelm/backend/internal/core/database"
	"github.com/insidelm/backend/internal/core/ingestion"
	"github.com/insidelm/backend/internal/core/llm"
	"github.com/insidelm/backend/internal/models"
	"github.com/insidelm/backend/internal/services"
)

// Command-line ingestion: load PDFs into the document store without going
// through the HTTP API. Useful for seeding a fresh database.
func main() {
	app := &cli.App{
		Name:  "ingest",
		Usage: "ingest PDF documents into the library",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "path to a single PDF to ingest"},
			&cli.StringFlag{Name: "title", Usage: "document title (defaults to the file name)"},
			&cli.StringFlag{Name: "author", Usage: "document author"},
			&cli.StringFlag{Name: "genre", Usage: "one of: history, science, literature, philosophy, technology, other"},
			&cli.StringFlag{Name: "dir", Usage: "ingest every PDF in a directory"},
			&cli.StringFlag{Name: "manifest", Usage: "path to a JSON batch manifest"},
			&cli.BoolFlag{Name: "sample-manifest", Usage: "print a sample manifest and exit"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("sample-manifest") {
		return printSampleManifest()
	}

	modes := 0
	for _, f := range []string{"file", "dir", "manifest"} {
		if c.String(f) != "" {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of --file, --dir, or --manifest is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer store.Close()

	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		return fmt.Errorf("embedder init: %w", err)
	}

	svc := services.NewIngestService(
		store,
		embedder,
		ingestion.NewPDFExtractor(logger),
		ingestion.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg.IngestPause,
		logger,
	)

	switch {
	case c.String("file") != "":
		res, err := svc.IngestFile(ctx, services.IngestRequest{
			FilePath: c.String("file"),
			Title:    c.String("title"),
			Author:   c.String("author"),
			Genre:    models.Genre(c.String("genre")),
		})
		if err != nil {
			return err
		}
		fmt.Printf("ingested %q: book %s, %d chunks, %d pages\n",
			res.Title, res.BookID, res.ChunksCreated, res.TotalPages)
		return nil

	case c.String("dir") != "":
		results, err := svc.IngestDirectory(ctx, c.String("dir"), models.Genre(c.String("genre")))
		if err != nil {
			return err
		}
		reportBatch(results)
		return nil

	default:
		manifest, err := services.LoadManifest(c.String("manifest"))
		if err != nil {
			return err
		}
		reportBatch(svc.IngestBatch(ctx, manifest.Documents))
		return nil
	}
}

// reportBatch prints per-document outcomes. A failed document is reported,
// not fatal: the batch itself ran.
func reportBatch(results []services.BatchResult) {
	failed := 0
	for _, r := range results {
		if r.Status == "success" {
			fmt.Printf("ok     %s (book %s, %d chunks)\n", r.FilePath, r.BookID, r.ChunksCreated)
		} else {
			failed++
			fmt.Printf("error  %s: %s\n", r.FilePath, r.Message)
		}
	}
	fmt.Printf("%d succeeded, %d failed\n", len(results)-failed, failed)
}

func printSampleManifest() error {
	sample := services.Manifest{
		Documents: []services.IngestRequest{
			{FilePath: "books/roman-empire.pdf", Title: "The Roman Empire", Author: "J. Smith", Genre: models.GenreHistory},
			{FilePath: "books/quantum-basics.pdf", Title: "Quantum Basics", Author: "A. Jones", Genre: models.GenreScience},
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sample)
}
