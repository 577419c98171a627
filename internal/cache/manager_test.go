package cache_test

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"resume-rag/internal/cache"
	"resume-rag/internal/models"
	"resume-rag/internal/vectormath"
)

// stubEmbedder produces a deterministic pseudo-embedding from the text
// hash, so equal texts always map to equal vectors
type stubEmbedder struct {
	model string
	dim   int
	delay time.Duration
	fail  error
	calls atomic.Int64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail != nil {
		return nil, s.fail
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float64, s.dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>11))/float64(1<<52) - 1
	}
	return vec, nil
}

func (s *stubEmbedder) ModelID() string {
	return "stub/" + s.model
}

func testCorpus() []models.Snippet {
	return []models.Snippet{
		{ID: "w-0", Section: "work", Text: "led the storage team"},
		{ID: "w-1", Section: "work", Text: "built the ingest pipeline"},
		{ID: "s-0", Section: "skills", Text: "go, sql, kubernetes"},
	}
}

func TestLoadOrBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a valid cache with progress", func(t *testing.T) {
		emb := &stubEmbedder{model: "m1", dim: 8}
		mgr := cache.NewManager(cache.NewMemoryStore())

		var progress [][2]int
		c, err := mgr.LoadOrBuild(ctx, testCorpus(), emb, func(done, total int) {
			progress = append(progress, [2]int{done, total})
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, cache.Valid(c, testCorpus())).True()
		gt.Value(t, c.ModelID).Equal("stub/m1")
		gt.Value(t, c.Version).Equal(models.CacheVersion)
		gt.Array(t, c.Vectors).Length(3)
		gt.Array(t, c.Meta).Length(3)

		gt.Array(t, progress).Length(3)
		gt.Value(t, progress[0]).Equal([2]int{1, 3})
		gt.Value(t, progress[2]).Equal([2]int{3, 3})
	})

	t.Run("reuses the in-memory cache without re-embedding", func(t *testing.T) {
		emb := &stubEmbedder{model: "m2", dim: 8}
		mgr := cache.NewManager(cache.NewMemoryStore())

		first, err := mgr.LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		before := emb.calls.Load()

		second, err := mgr.LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, emb.calls.Load()).Equal(before)
		gt.Value(t, second).Equal(first)
	})

	t.Run("reuses a persisted cache across managers", func(t *testing.T) {
		emb := &stubEmbedder{model: "m3", dim: 8}
		store := cache.NewMemoryStore()

		_, err := cache.NewManager(store).LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		before := emb.calls.Load()

		c, err := cache.NewManager(store).LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, emb.calls.Load()).Equal(before)
		gt.Bool(t, cache.Valid(c, testCorpus())).True()
	})

	t.Run("rebuilds when the persisted version is stale", func(t *testing.T) {
		emb := &stubEmbedder{model: "m4", dim: 8}
		store := cache.NewMemoryStore()

		stale := &models.EmbeddingCache{
			ModelID: emb.ModelID(),
			Vectors: [][]float64{{1}, {1}, {1}},
			Meta:    []models.SnippetRef{{ID: "w-0"}, {ID: "w-1"}, {ID: "s-0"}},
			Version: models.CacheVersion + 1,
		}
		gt.NoError(t, store.Save(ctx, stale)).Required()

		c, err := cache.NewManager(store).LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, emb.calls.Load() > 0).True()
		gt.Value(t, c.Version).Equal(models.CacheVersion)
	})

	t.Run("rebuilds when the corpus changed", func(t *testing.T) {
		emb := &stubEmbedder{model: "m5", dim: 8}
		store := cache.NewMemoryStore()

		_, err := cache.NewManager(store).LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		before := emb.calls.Load()

		changed := testCorpus()
		changed[1].ID = "w-9"
		_, err = cache.NewManager(store).LoadOrBuild(ctx, changed, emb, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, emb.calls.Load() > before).True()
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		boom := errors.New("backend down")
		emb := &stubEmbedder{model: "m6", dim: 8, fail: boom}
		mgr := cache.NewManager(cache.NewMemoryStore())

		_, err := mgr.LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, boom)).True()
	})

	t.Run("inconsistent dimensions are rejected", func(t *testing.T) {
		emb := &varyingDimEmbedder{}
		mgr := cache.NewManager(cache.NewMemoryStore())

		_, err := mgr.LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, vectormath.ErrDimensionMismatch)).True()
	})

	t.Run("concurrent callers share one build", func(t *testing.T) {
		emb := &stubEmbedder{model: "m7", dim: 8, delay: 5 * time.Millisecond}
		mgr := cache.NewManager(cache.NewMemoryStore())

		var wg sync.WaitGroup
		results := make([]*models.EmbeddingCache, 10)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, err := mgr.LoadOrBuild(ctx, testCorpus(), emb, nil)
				gt.NoError(t, err)
				results[i] = c
			}(i)
		}
		wg.Wait()

		gt.Value(t, emb.calls.Load()).Equal(int64(len(testCorpus())))
		for _, c := range results {
			gt.Value(t, c).Equal(results[0])
		}
	})
}

func TestLoadOrBuildDegradedStore(t *testing.T) {
	ctx := context.Background()

	t.Run("unreadable store triggers a silent rebuild", func(t *testing.T) {
		emb := &stubEmbedder{model: "d1", dim: 8}
		store := &brokenStore{loadErr: cache.ErrCacheCorrupt}

		c, err := cache.NewManager(store).LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, cache.Valid(c, testCorpus())).True()
	})

	t.Run("save failure is non-fatal", func(t *testing.T) {
		emb := &stubEmbedder{model: "d2", dim: 8}
		store := &brokenStore{saveErr: cache.ErrPersistence}

		c, err := cache.NewManager(store).LoadOrBuild(ctx, testCorpus(), emb, nil)
		gt.NoError(t, err).Required()
		gt.Bool(t, cache.Valid(c, testCorpus())).True()
	})
}

func TestValid(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{model: "v1", dim: 8}
	c, err := cache.NewManager(cache.NewMemoryStore()).LoadOrBuild(ctx, testCorpus(), emb, nil)
	gt.NoError(t, err).Required()

	t.Run("accepts a freshly built cache", func(t *testing.T) {
		gt.Bool(t, cache.Valid(c, testCorpus())).True()
	})

	t.Run("rejects nil", func(t *testing.T) {
		gt.Bool(t, cache.Valid(nil, testCorpus())).False()
	})

	t.Run("rejects a shorter corpus", func(t *testing.T) {
		gt.Bool(t, cache.Valid(c, testCorpus()[:2])).False()
	})

	t.Run("rejects reordered snippet ids", func(t *testing.T) {
		reordered := testCorpus()
		reordered[0], reordered[1] = reordered[1], reordered[0]
		gt.Bool(t, cache.Valid(c, reordered)).False()
	})

	t.Run("rejects non-unit vectors", func(t *testing.T) {
		bad := &models.EmbeddingCache{
			ModelID: c.ModelID,
			Vectors: [][]float64{{2, 0}, {0, 1}, {1, 0}},
			Meta:    c.Meta,
			Version: models.CacheVersion,
		}
		gt.Bool(t, cache.Valid(bad, testCorpus())).False()
	})
}

// varyingDimEmbedder returns a different dimension per call
type varyingDimEmbedder struct {
	n atomic.Int64
}

func (v *varyingDimEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return make([]float64, 4+int(v.n.Add(1))), nil
}

func (v *varyingDimEmbedder) ModelID() string { return "stub/varying" }

// brokenStore fails on demand to exercise the degraded paths
type brokenStore struct {
	loadErr error
	saveErr error
}

func (b *brokenStore) Load(ctx context.Context, modelID string) (*models.EmbeddingCache, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return nil, nil
}

func (b *brokenStore) Save(ctx context.Context, c *models.EmbeddingCache) error {
	return b.saveErr
}
