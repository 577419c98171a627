// Package corpus loads and validates the snippet corpus that retrieval
// runs over. A corpus is a fixed ordered sequence of short resume
// passages; it is defined at build time and never mutated at runtime.
package corpus

import (
	_ "embed"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/models"
)

//go:embed resume.json
var defaultCorpus []byte

// ErrInvalidCorpus indicates the corpus document failed validation
var ErrInvalidCorpus = goerr.New("invalid corpus document")

// Default returns the corpus embedded into the binary
func Default() ([]models.Snippet, error) {
	return Parse(defaultCorpus)
}

// Load reads a corpus JSON document from disk
func Load(path string) ([]models.Snippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read corpus file", goerr.V("path", path))
	}
	return Parse(data)
}

// Parse decodes and validates a corpus JSON document. Every snippet must
// carry a unique non-empty id and non-empty text.
func Parse(data []byte) ([]models.Snippet, error) {
	var snippets []models.Snippet
	if err := json.Unmarshal(data, &snippets); err != nil {
		return nil, goerr.Wrap(err, "failed to decode corpus JSON")
	}

	if len(snippets) == 0 {
		return nil, goerr.Wrap(ErrInvalidCorpus, "corpus is empty")
	}

	seen := make(map[string]bool, len(snippets))
	for i, s := range snippets {
		if s.ID == "" {
			return nil, goerr.Wrap(ErrInvalidCorpus, "snippet has empty id", goerr.V("index", i))
		}
		if seen[s.ID] {
			return nil, goerr.Wrap(ErrInvalidCorpus, "duplicate snippet id", goerr.V("id", s.ID))
		}
		if s.Text == "" {
			return nil, goerr.Wrap(ErrInvalidCorpus, "snippet has empty text", goerr.V("id", s.ID))
		}
		seen[s.ID] = true
	}

	return snippets, nil
}
