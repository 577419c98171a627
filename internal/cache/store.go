// Package cache maintains the persisted mapping from embedding model id
// to the corpus embedding cache, and rebuilds it when absent or invalid.
package cache

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/models"
)

var (
	// ErrCacheCorrupt marks a persisted cache that failed decoding or
	// validation. The manager recovers by rebuilding; this never reaches
	// the end user.
	ErrCacheCorrupt = goerr.New("embedding cache failed validation")

	// ErrPersistence marks a cache write failure. Non-fatal: the
	// in-memory cache stays usable, only durability is lost.
	ErrPersistence = goerr.New("embedding cache write failed")
)

// Store persists one embedding cache record per model id
type Store interface {
	// Load returns the cache for modelID, or (nil, nil) when absent.
	Load(ctx context.Context, modelID string) (*models.EmbeddingCache, error)

	// Save overwrites any prior cache for the same model id.
	Save(ctx context.Context, cache *models.EmbeddingCache) error
}

// MemoryStore keeps caches in process memory. Used in tests and as the
// fallback when no durable store is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]*models.EmbeddingCache
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		caches: make(map[string]*models.EmbeddingCache),
	}
}

// Load returns the cache for modelID, or (nil, nil) when absent
func (s *MemoryStore) Load(ctx context.Context, modelID string) (*models.EmbeddingCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cache, ok := s.caches[modelID]
	if !ok {
		return nil, nil
	}
	return cache, nil
}

// Save stores the cache keyed by its model id
func (s *MemoryStore) Save(ctx context.Context, cache *models.EmbeddingCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.caches[cache.ModelID] = cache
	return nil
}
