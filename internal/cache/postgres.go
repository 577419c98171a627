package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/models"
)

// PostgresStore persists embedding caches in PostgreSQL for deployments
// where several sessions share one durable cache
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the cache table
// exists
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to database")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to ping database")
	}

	_, err = pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS embedding_cache (
            model   TEXT PRIMARY KEY,
            version INTEGER NOT NULL,
            dim     INTEGER NOT NULL,
            meta    JSONB NOT NULL,
            vectors BYTEA NOT NULL
        )
    `)
	if err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to create embedding_cache table")
	}

	return &PostgresStore{pool: pool}, nil
}

// Load reads the cache row for modelID, or returns (nil, nil) when absent
func (s *PostgresStore) Load(ctx context.Context, modelID string) (*models.EmbeddingCache, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT version, dim, meta, vectors FROM embedding_cache WHERE model = $1
    `, modelID)

	var version, dim int
	var metaJSON []byte
	var blob []byte
	if err := row.Scan(&version, &dim, &metaJSON, &blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read embedding cache", goerr.V("model", modelID))
	}

	var meta []models.SnippetRef
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, goerr.Wrap(ErrCacheCorrupt, "undecodable cache metadata", goerr.V("model", modelID))
	}

	vectors, err := decodeVectors(blob, dim)
	if err != nil {
		return nil, err
	}

	return &models.EmbeddingCache{
		ModelID: modelID,
		Vectors: vectors,
		Meta:    meta,
		Version: version,
	}, nil
}

// Save upserts the cache row for its model id
func (s *PostgresStore) Save(ctx context.Context, cache *models.EmbeddingCache) error {
	blob, dim, err := encodeVectors(cache.Vectors)
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to encode vectors", goerr.V("cause", err))
	}

	metaJSON, err := json.Marshal(cache.Meta)
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to encode cache metadata", goerr.V("cause", err))
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO embedding_cache (model, version, dim, meta, vectors)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (model) DO UPDATE SET
            version = EXCLUDED.version,
            dim     = EXCLUDED.dim,
            meta    = EXCLUDED.meta,
            vectors = EXCLUDED.vectors
    `, cache.ModelID, cache.Version, dim, metaJSON, blob)
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to write embedding cache",
			goerr.V("model", cache.ModelID), goerr.V("cause", err))
	}

	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
