// Command resumechat answers questions about a resume from the
// terminal, either as a one-shot question or an interactive loop.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"resume-rag/internal/cache"
	"resume-rag/internal/corpus"
	"resume-rag/internal/embedding"
	"resume-rag/internal/llm"
	"resume-rag/internal/logger"
	"resume-rag/internal/models"
	"resume-rag/internal/orchestrator"
	"resume-rag/internal/probe"
	"resume-rag/internal/session"
)

func main() {
	var (
		question    = flag.String("q", "", "Question to answer (one-shot mode)")
		interactive = flag.Bool("i", false, "Interactive mode")
		topK        = flag.Int("k", orchestrator.DefaultTopK, "Number of snippets to retrieve")
		backend     = flag.String("backend", "ollama", "Backend: ollama or openai")
		genModel    = flag.String("model", "llama3.2", "Generation model name")
		embModel    = flag.String("embed-model", "nomic-embed-text", "Embedding model name")
		host        = flag.String("host", "", "Ollama host (default: OLLAMA_HOST)")
		cachePath   = flag.String("cache", "", "SQLite embedding cache path (default: in-memory)")
		pgConn      = flag.String("pg", "", "PostgreSQL connection string for the embedding cache")
		timeout     = flag.Duration("timeout", orchestrator.DefaultTimeout, "Generation timeout before extractive fallback")
		corpusPath  = flag.String("corpus", "", "Corpus JSON path (default: embedded resume)")
		pdfPath     = flag.String("pdf", "", "Resume PDF to index instead of the JSON corpus")
		stream      = flag.Bool("stream", true, "Stream the generated answer")
	)
	flag.Parse()

	logger.Init()
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	if *question == "" && !*interactive {
		fmt.Println("Usage: resumechat -q \"question\" | resumechat -i")
		flag.PrintDefaults()
		os.Exit(1)
	}

	snippets, err := loadCorpus(*corpusPath, *pdfPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	embedder, generator, err := buildBackends(*backend, *host, *embModel, *genModel)
	if err != nil {
		log.Fatalf("Failed to set up %s backend: %v", *backend, err)
	}

	store, closeStore, err := buildStore(*cachePath, *pgConn)
	if err != nil {
		log.Fatalf("Failed to open embedding cache store: %v", err)
	}
	defer closeStore()

	ctx := context.Background()

	for _, w := range probe.Probe(ctx, generator) {
		fmt.Printf("warning: %s\n", w)
	}

	sess := session.New(snippets, embedder, generator, store, orchestrator.Config{
		TopK:    *topK,
		Timeout: *timeout,
		Stream:  *stream,
	})

	fmt.Printf("Preparing embeddings for %d snippets...\n", len(snippets))
	start := time.Now()
	err = sess.InitEmbeddings(ctx, func(done, total int) {
		if done == total || done%10 == 0 {
			fmt.Printf("  embedded %d/%d\n", done, total)
		}
	})
	if err != nil {
		log.Fatalf("Failed to prepare embeddings: %v", err)
	}
	fmt.Printf("Embeddings ready in %v\n\n", time.Since(start).Round(time.Millisecond))

	if err := sess.InitGeneration(ctx); err != nil {
		fmt.Println("warning: generation backend not ready, answers may be extractive")
	}

	if *interactive {
		runInteractive(ctx, sess, *stream)
		return
	}

	turn, err := ask(ctx, sess, *question, *stream)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}
	printSources(turn)
}

func runInteractive(ctx context.Context, sess *session.Session, stream bool) {
	fmt.Println("Ask about the resume. Commands: /reset, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return
		case line == "/reset":
			sess.Reset()
			fmt.Println("Conversation cleared.")
			continue
		}

		start := time.Now()
		turn, err := ask(ctx, sess, line, stream)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printSources(turn)
		fmt.Printf("(%v)\n\n", time.Since(start).Round(time.Millisecond))
	}
}

// ask runs one turn, echoing streamed output as it arrives. Anything
// not covered by the stream (non-streamed answers, extractive
// fallbacks after a mid-stream failure) is printed in full afterwards.
func ask(ctx context.Context, sess *session.Session, question string, stream bool) (*models.Turn, error) {
	var echoed string
	if stream {
		sess.OnDelta(func(partial string) {
			fmt.Print(partial[len(echoed):])
			echoed = partial
		})
		defer sess.OnDelta(nil)
	}

	turn, err := sess.Ask(ctx, question)
	if err != nil {
		return nil, err
	}

	if turn.Text == echoed {
		fmt.Println()
	} else {
		if echoed != "" {
			fmt.Println()
		}
		fmt.Println(turn.Text)
	}
	return turn, nil
}

func printSources(turn *models.Turn) {
	if len(turn.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range turn.Citations {
			fmt.Printf("  [%d] %s (%s)\n", c.Index, c.SnippetID, c.Section)
		}
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

func buildBackends(backend, host, embModel, genModel string) (embedding.Backend, llm.Backend, error) {
	switch backend {
	case "ollama":
		emb, err := embedding.NewOllamaEmbedder(host, embModel)
		if err != nil {
			return nil, nil, err
		}
		gen, err := llm.NewOllamaLLM(host, genModel)
		if err != nil {
			return nil, nil, err
		}
		return emb, gen, nil
	case "openai":
		emb, err := embedding.NewOpenAIEmbedder(embModel)
		if err != nil {
			return nil, nil, err
		}
		gen, err := llm.NewOpenAILLM(genModel)
		if err != nil {
			return nil, nil, err
		}
		return emb, gen, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want ollama or openai)", backend)
	}
}

func buildStore(cachePath, pgConn string) (cache.Store, func(), error) {
	switch {
	case pgConn != "":
		s, err := cache.NewPostgresStore(context.Background(), pgConn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case cachePath != "":
		s, err := cache.NewSQLiteStore(cachePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return cache.NewMemoryStore(), func() {}, nil
	}
}
