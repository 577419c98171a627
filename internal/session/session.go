// Package session ties the answering pipeline together for one
// conversation: corpus, embedding cache, orchestrator, and an ordered
// turn history.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/cache"
	"resume-rag/internal/embedding"
	"resume-rag/internal/llm"
	"resume-rag/internal/models"
	"resume-rag/internal/orchestrator"
)

// Session answers questions about one corpus. Turns are strictly
// sequential: concurrent Ask calls serialize on the session lock.
type Session struct {
	corpus    []models.Snippet
	embedder  embedding.Backend
	generator llm.Backend
	manager   *cache.Manager
	orch      *orchestrator.Orchestrator

	mu      sync.Mutex
	cache   *models.EmbeddingCache
	history []models.Turn
}

// New creates a session. The generator may be nil, in which case every
// answer is extractive.
func New(corpus []models.Snippet, embedder embedding.Backend, generator llm.Backend,
	store cache.Store, cfg orchestrator.Config) *Session {

	return &Session{
		corpus:    corpus,
		embedder:  embedder,
		generator: generator,
		manager:   cache.NewManager(store),
		orch:      orchestrator.New(generator, cfg),
	}
}

// OnDelta registers an observer for the growing partial answer during
// streamed generation. Must be called before Ask.
func (s *Session) OnDelta(fn func(partial string)) {
	s.orch.OnDelta = fn
}

// InitEmbeddings loads or builds the embedding cache for the corpus.
// Ask calls this lazily when it has not been run, but running it up
// front lets the caller show build progress.
func (s *Session) InitEmbeddings(ctx context.Context, onProgress cache.ProgressFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initEmbeddingsLocked(ctx, onProgress)
}

func (s *Session) initEmbeddingsLocked(ctx context.Context, onProgress cache.ProgressFunc) error {
	c, err := s.manager.LoadOrBuild(ctx, s.corpus, s.embedder, onProgress)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare embedding cache")
	}
	s.cache = c
	return nil
}

// InitGeneration warms the generation backend. A warm failure only
// means the first answers may be extractive; it is safe to ignore.
func (s *Session) InitGeneration(ctx context.Context) error {
	if s.generator == nil {
		return nil
	}
	if err := s.generator.Warm(ctx); err != nil {
		slog.Warn("generation backend not ready", "backend", s.generator.Name(), "error", err)
		return err
	}
	return nil
}

// Ask answers one question, appends the user and assistant turns to the
// history, and returns the assistant turn. The embedding cache is built
// on first use if InitEmbeddings was never called.
func (s *Session) Ask(ctx context.Context, question string) (*models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache == nil {
		if err := s.initEmbeddingsLocked(ctx, nil); err != nil {
			return nil, err
		}
	}

	answer, err := s.orch.Answer(ctx, question, s.embedder, s.cache, s.corpus)
	if err != nil {
		return nil, err
	}

	s.history = append(s.history, models.Turn{
		Role:      models.RoleUser,
		Text:      question,
		Timestamp: time.Now(),
	})
	turn := models.Turn{
		Role:      models.RoleAssistant,
		Text:      answer.Text,
		Citations: answer.Citations,
		Timestamp: answer.Timestamp,
	}
	s.history = append(s.history, turn)

	return &turn, nil
}

// History returns a copy of the ordered turn history
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the turn history. The corpus and embedding cache are
// kept; only the conversation restarts.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
