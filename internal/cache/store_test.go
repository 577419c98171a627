package cache_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"resume-rag/internal/cache"
	"resume-rag/internal/models"
)

func sampleCache(modelID string) *models.EmbeddingCache {
	return &models.EmbeddingCache{
		ModelID: modelID,
		Vectors: [][]float64{
			{0.6, 0.8, 0},
			{0, 0, 1},
		},
		Meta: []models.SnippetRef{
			{ID: "w-0", Section: "work"},
			{ID: "s-0", Section: "skills"},
		},
		Version: models.CacheVersion,
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()

	t.Run("missing model loads as nil", func(t *testing.T) {
		c, err := store.Load(ctx, "stub/none")
		gt.NoError(t, err).Required()
		gt.Value(t, c).Nil()
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		in := sampleCache("stub/mem")
		gt.NoError(t, store.Save(ctx, in)).Required()

		out, err := store.Load(ctx, "stub/mem")
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal(in)
	})

	t.Run("caches are isolated per model id", func(t *testing.T) {
		gt.NoError(t, store.Save(ctx, sampleCache("stub/a"))).Required()
		gt.NoError(t, store.Save(ctx, sampleCache("stub/b"))).Required()

		a, err := store.Load(ctx, "stub/a")
		gt.NoError(t, err).Required()
		gt.Value(t, a.ModelID).Equal("stub/a")
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings.db")

	store, err := cache.NewSQLiteStore(path)
	gt.NoError(t, err).Required()
	defer store.Close()

	t.Run("missing model loads as nil", func(t *testing.T) {
		c, err := store.Load(ctx, "stub/none")
		gt.NoError(t, err).Required()
		gt.Value(t, c).Nil()
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		in := sampleCache("stub/sqlite")
		gt.NoError(t, store.Save(ctx, in)).Required()

		out, err := store.Load(ctx, "stub/sqlite")
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal(in)
	})

	t.Run("save overwrites the previous cache", func(t *testing.T) {
		first := sampleCache("stub/over")
		gt.NoError(t, store.Save(ctx, first)).Required()

		second := sampleCache("stub/over")
		second.Vectors = [][]float64{{1, 0}, {0, 1}}
		gt.NoError(t, store.Save(ctx, second)).Required()

		out, err := store.Load(ctx, "stub/over")
		gt.NoError(t, err).Required()
		gt.Value(t, out.Vectors).Equal(second.Vectors)
	})

	t.Run("survives reopening the database", func(t *testing.T) {
		in := sampleCache("stub/durable")
		gt.NoError(t, store.Save(ctx, in)).Required()
		gt.NoError(t, store.Close()).Required()

		reopened, err := cache.NewSQLiteStore(path)
		gt.NoError(t, err).Required()
		defer reopened.Close()

		out, err := reopened.Load(ctx, "stub/durable")
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal(in)
	})
}
