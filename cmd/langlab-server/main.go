// langlab-server runs the teaching backend: structured chat, intent parsing,
// three retrieval pipelines, the chain router and the memory pipeline behind
// one HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/faragon/langlab/internal/config"
	"github.com/faragon/langlab/internal/llm"
	"github.com/faragon/langlab/internal/memory"
	"github.com/faragon/langlab/internal/rag"
	"github.com/faragon/langlab/internal/router"
	"github.com/faragon/langlab/internal/server"
	"github.com/faragon/langlab/internal/vectorstore"
	chromemstore "github.com/faragon/langlab/internal/vectorstore/chromem"
	"github.com/faragon/langlab/internal/vectorstore/postgres"
	sqlitestore "github.com/faragon/langlab/internal/vectorstore/sqlite"
	"github.com/faragon/langlab/web/handlers"
)

// Collection names, one per mini-project that persists vectors.
const (
	collectionBasic    = "a3_docs"
	collectionV2       = "a3_docs_v2"
	collectionAdvanced = "a4_docs_v2"
	collectionMemory   = "a6_memory"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer store.Close()

	gateway := llm.NewGateway(cfg.LLM)
	embedder, err := llm.NewEmbeddingGenerator(cfg.Embedding, cfg.LLM.APIKey)
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := handlers.NewWebSocketHub()
	go hub.Run()

	// Index documents in the background so boot is not blocked on embedding
	// calls; early queries may see a partial index.
	basicIndexer := rag.NewIndexer(store, embedder, rag.NewChunker(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap), collectionBasic, hub)
	v2Indexer := rag.NewIndexer(store, embedder, rag.NewChunker(400, 0), collectionV2, hub)
	advancedIndexer := rag.NewIndexer(store, embedder, rag.NewChunker(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap), collectionAdvanced, hub)

	go indexDirectory(ctx, basicIndexer, cfg.Indexing.BasicDataPath)
	go indexDirectory(ctx, v2Indexer, cfg.Indexing.V2DataPath)
	go func() {
		indexDirectory(ctx, advancedIndexer, cfg.Indexing.AdvancedDataPath)
		if len(cfg.Indexing.ScrapeURLs) > 0 {
			if _, err := advancedIndexer.IndexURLs(ctx, cfg.Indexing.ScrapeURLs); err != nil {
				log.Printf("Indexing %s from URLs failed: %v", collectionAdvanced, err)
			}
		}
	}()

	basicPipeline := rag.NewPipeline(store, embedder, gateway, collectionBasic, 3)
	v2Pipeline := rag.NewPipeline(store, embedder, gateway, collectionV2, 3)
	advancedPipeline := rag.NewPipeline(store, embedder, gateway, collectionAdvanced, 3)

	chainRouter := router.New(gateway, advancedPipeline)
	memoryPipeline := memory.NewPipeline(gateway, embedder, store, collectionMemory)

	h := handlers.New(cfg, gateway, basicPipeline, v2Pipeline, advancedPipeline, chainRouter, memoryPipeline)

	addr, err := server.Start(ctx, cfg, h, hub)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("langlab API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give in-flight connections time to close
}

// openStore selects the storage engine from configuration. sqlite is the
// default; postgres needs a DSN; chromem trades filtered listing for a
// dependency-free embedded store.
func openStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	case "chromem":
		return chromemstore.New(filepath.Join(cfg.Storage.DataPath, "chromem"))
	default:
		return sqlitestore.New(filepath.Join(cfg.Storage.DataPath, "langlab.db"))
	}
}

func indexDirectory(ctx context.Context, ix *rag.Indexer, dir string) {
	if _, err := ix.IndexDirectory(ctx, dir); err != nil {
		log.Printf("Indexing %s from %s failed: %v", ix.Collection(), dir, err)
	}
}
