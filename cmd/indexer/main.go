// Command indexer builds and persists the embedding cache for a corpus
// so interactive sessions start from a warm cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"resume-rag/internal/cache"
	"resume-rag/internal/corpus"
	"resume-rag/internal/embedding"
	"resume-rag/internal/logger"
	"resume-rag/internal/models"
)

func main() {
	var (
		backend    = flag.String("backend", "ollama", "Backend: ollama or openai")
		embModel   = flag.String("embed-model", "nomic-embed-text", "Embedding model name")
		host       = flag.String("host", "", "Ollama host (default: OLLAMA_HOST)")
		cachePath  = flag.String("cache", "embeddings.db", "SQLite embedding cache path")
		pgConn     = flag.String("pg", "", "PostgreSQL connection string for the embedding cache")
		corpusPath = flag.String("corpus", "", "Corpus JSON path (default: embedded resume)")
		pdfPath    = flag.String("pdf", "", "Resume PDF to index instead of the JSON corpus")
	)
	flag.Parse()

	logger.Init()
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	snippets, err := loadCorpus(*corpusPath, *pdfPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	embedder, err := buildEmbedder(*backend, *host, *embModel)
	if err != nil {
		log.Fatalf("Failed to set up %s embedder: %v", *backend, err)
	}

	ctx := context.Background()

	store, closeStore, err := buildStore(ctx, *cachePath, *pgConn)
	if err != nil {
		log.Fatalf("Failed to open embedding cache store: %v", err)
	}
	defer closeStore()

	fmt.Printf("Indexing %d snippets with %s\n", len(snippets), embedder.ModelID())
	start := time.Now()

	manager := cache.NewManager(store)
	built, err := manager.LoadOrBuild(ctx, snippets, embedder, func(done, total int) {
		elapsed := time.Since(start)
		eta := time.Duration(0)
		if done > 0 {
			eta = elapsed / time.Duration(done) * time.Duration(total-done)
		}
		fmt.Printf("  %d/%d (elapsed %v, eta %v)\n", done, total,
			elapsed.Round(time.Second), eta.Round(time.Second))
	})
	if err != nil {
		log.Fatalf("Failed to build embedding cache: %v", err)
	}

	printStats(snippets, built, time.Since(start))
}

func printStats(snippets []models.Snippet, c *models.EmbeddingCache, elapsed time.Duration) {
	dim := 0
	if len(c.Vectors) > 0 {
		dim = len(c.Vectors[0])
	}

	sections := make(map[string]int)
	totalLen := 0
	for _, s := range snippets {
		sections[s.Section]++
		totalLen += len(s.Text)
	}

	fmt.Printf("\nIndexed %d snippets in %v\n", len(c.Vectors), elapsed.Round(time.Millisecond))
	fmt.Printf("  model:      %s\n", c.ModelID)
	fmt.Printf("  dimensions: %d\n", dim)
	fmt.Printf("  sections:   %d\n", len(sections))
	if len(snippets) > 0 {
		fmt.Printf("  avg length: %d chars\n", totalLen/len(snippets))
	}
}

func loadCorpus(corpusPath, pdfPath string) ([]models.Snippet, error) {
	switch {
	case pdfPath != "":
		return corpus.FromPDF(pdfPath)
	case corpusPath != "":
		return corpus.Load(corpusPath)
	default:
		return corpus.Default()
	}
}

func buildEmbedder(backend, host, model string) (embedding.Backend, error) {
	switch backend {
	case "ollama":
		return embedding.NewOllamaEmbedder(host, model)
	case "openai":
		return embedding.NewOpenAIEmbedder(model)
	default:
		return nil, fmt.Errorf("unknown backend %q (want ollama or openai)", backend)
	}
}

func buildStore(ctx context.Context, cachePath, pgConn string) (cache.Store, func(), error) {
	if pgConn != "" {
		s, err := cache.NewPostgresStore(ctx, pgConn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	s, err := cache.NewSQLiteStore(cachePath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
