package cache

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/embedding"
	"resume-rag/internal/models"
	"resume-rag/internal/vectormath"
)

// unitNormTolerance bounds how far a stored vector's norm may drift from 1
const unitNormTolerance = 1e-6

// ProgressFunc reports build progress after each embedded snippet.
// Callbacks are advisory; done never exceeds total.
type ProgressFunc func(done, total int)

// buildState tracks one in-flight cache build so concurrent callers for
// the same model id wait for its result instead of starting a duplicate
type buildState struct {
	done  chan struct{}
	cache *models.EmbeddingCache
	err   error
}

// Manager owns the load-or-build lifecycle of embedding caches. Builds
// for the same model id are single-flight.
type Manager struct {
	store Store

	mu     sync.Mutex
	ready  map[string]*models.EmbeddingCache
	builds map[string]*buildState
}

// NewManager creates a manager backed by the given store
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		ready:  make(map[string]*models.EmbeddingCache),
		builds: make(map[string]*buildState),
	}
}

// LoadOrBuild returns the embedding cache for the backend's model id,
// loading a valid persisted cache when one exists and otherwise replaying
// the corpus through the embedding backend. A corrupt or stale persisted
// cache triggers a rebuild, never an error.
func (m *Manager) LoadOrBuild(ctx context.Context, snippets []models.Snippet,
	backend embedding.Backend, onProgress ProgressFunc) (*models.EmbeddingCache, error) {

	modelID := backend.ModelID()

	m.mu.Lock()
	if c, ok := m.ready[modelID]; ok && Valid(c, snippets) {
		m.mu.Unlock()
		return c, nil
	}
	if b, ok := m.builds[modelID]; ok {
		m.mu.Unlock()
		select {
		case <-b.done:
			return b.cache, b.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b := &buildState{done: make(chan struct{})}
	m.builds[modelID] = b
	m.mu.Unlock()

	cache, err := m.loadOrBuild(ctx, modelID, snippets, backend, onProgress)

	m.mu.Lock()
	delete(m.builds, modelID)
	if err == nil {
		m.ready[modelID] = cache
	}
	m.mu.Unlock()

	b.cache, b.err = cache, err
	close(b.done)

	return cache, err
}

func (m *Manager) loadOrBuild(ctx context.Context, modelID string, snippets []models.Snippet,
	backend embedding.Backend, onProgress ProgressFunc) (*models.EmbeddingCache, error) {

	loaded, err := m.store.Load(ctx, modelID)
	if err != nil {
		// A broken persisted cache only costs us the fast path.
		slog.Warn("discarding unreadable embedding cache", "model", modelID, "error", err)
	} else if Valid(loaded, snippets) {
		return loaded, nil
	}

	cache, err := m.build(ctx, modelID, snippets, backend, onProgress)
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(ctx, cache); err != nil {
		// Persist failures are non-fatal; the session keeps the
		// in-memory cache and only loses durability.
		slog.Warn("failed to persist embedding cache", "model", modelID, "error", err)
	}

	return cache, nil
}

// build replays the corpus through the embedding backend in order,
// normalizing each vector and reporting progress per snippet
func (m *Manager) build(ctx context.Context, modelID string, snippets []models.Snippet,
	backend embedding.Backend, onProgress ProgressFunc) (*models.EmbeddingCache, error) {

	cache := &models.EmbeddingCache{
		ModelID: modelID,
		Vectors: make([][]float64, 0, len(snippets)),
		Meta:    make([]models.SnippetRef, 0, len(snippets)),
		Version: models.CacheVersion,
	}

	dim := -1
	for i, s := range snippets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := backend.Embed(ctx, s.Text)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed snippet", goerr.V("id", s.ID))
		}

		if dim == -1 {
			dim = len(raw)
		} else if len(raw) != dim {
			return nil, goerr.Wrap(vectormath.ErrDimensionMismatch, "inconsistent embedding dimension",
				goerr.V("id", s.ID), goerr.V("dim", dim), goerr.V("got", len(raw)))
		}

		cache.Vectors = append(cache.Vectors, vectormath.Normalize(raw))
		cache.Meta = append(cache.Meta, models.SnippetRef{ID: s.ID, Section: s.Section})

		if onProgress != nil {
			onProgress(i+1, len(snippets))
		}
	}

	return cache, nil
}

// Valid reports whether a cache is usable for the given corpus: matching
// schema version, positional alignment with the corpus, and unit-norm
// vectors. Any mismatch invalidates the cache and forces a rebuild.
func Valid(c *models.EmbeddingCache, snippets []models.Snippet) bool {
	if c == nil || c.Version != models.CacheVersion {
		return false
	}
	if len(c.Vectors) != len(snippets) || len(c.Meta) != len(snippets) {
		return false
	}
	for i := range snippets {
		if c.Meta[i].ID != snippets[i].ID {
			return false
		}
	}
	for _, vec := range c.Vectors {
		if math.Abs(vectormath.Norm(vec)-1.0) > unitNormTolerance {
			return false
		}
	}
	return true
}
