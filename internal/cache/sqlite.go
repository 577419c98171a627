package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"resume-rag/internal/models"
)

// SQLiteStore persists embedding caches in a local SQLite database. This
// is the default durable store; one row per model id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// cache table exists
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS embedding_cache (
            model   TEXT PRIMARY KEY,
            version INTEGER NOT NULL,
            dim     INTEGER NOT NULL,
            meta    TEXT NOT NULL,
            vectors BLOB NOT NULL
        )
    `)
	if err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create embedding_cache table")
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads the cache row for modelID, or returns (nil, nil) when absent
func (s *SQLiteStore) Load(ctx context.Context, modelID string) (*models.EmbeddingCache, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT version, dim, meta, vectors FROM embedding_cache WHERE model = ?
    `, modelID)

	var version, dim int
	var metaJSON string
	var blob []byte
	if err := row.Scan(&version, &dim, &metaJSON, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read embedding cache", goerr.V("model", modelID))
	}

	var meta []models.SnippetRef
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
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
func (s *SQLiteStore) Save(ctx context.Context, cache *models.EmbeddingCache) error {
	blob, dim, err := encodeVectors(cache.Vectors)
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to encode vectors", goerr.V("cause", err))
	}

	metaJSON, err := json.Marshal(cache.Meta)
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to encode cache metadata", goerr.V("cause", err))
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO embedding_cache (model, version, dim, meta, vectors)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(model) DO UPDATE SET
            version = excluded.version,
            dim     = excluded.dim,
            meta    = excluded.meta,
            vectors = excluded.vectors
    `, cache.ModelID, cache.Version, dim, string(metaJSON), blob)
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to write embedding cache",
			goerr.V("model", cache.ModelID), goerr.V("cause", err))
	}

	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
