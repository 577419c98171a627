// Package search ranks cached snippet vectors against a query vector by
// cosine similarity. The corpus is small (tens of snippets), so a full
// scan plus sort beats any index structure.
package search

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/models"
	"resume-rag/internal/vectormath"
)

// TopK returns the k snippets whose cached vectors score highest against
// the unit-normalized query vector. Results are sorted by descending
// score with ties broken by ascending corpus index, so output is fully
// deterministic. The snippets slice supplies the original text for each
// hit and must be the corpus the cache was built from.
func TopK(cache *models.EmbeddingCache, snippets []models.Snippet, query []float64, k int) ([]models.SearchHit, error) {
	if len(cache.Vectors) != len(snippets) {
		return nil, goerr.Wrap(vectormath.ErrDimensionMismatch, "cache and corpus out of step",
			goerr.V("vectors", len(cache.Vectors)), goerr.V("snippets", len(snippets)))
	}

	hits := make([]models.SearchHit, 0, len(snippets))
	for i, vec := range cache.Vectors {
		score, err := vectormath.Dot(vec, query)
		if err != nil {
			return nil, err
		}
		hits = append(hits, models.SearchHit{
			Index: i,
			Score: score,
			Snippet: models.Snippet{
				ID:      cache.Meta[i].ID,
				Section: cache.Meta[i].Section,
				Text:    snippets[i].Text,
			},
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k < 0 {
		k = 0
	}
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}
