package models

import "time"

// Snippet represents one retrievable unit of resume text
type Snippet struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// SnippetRef is the per-vector metadata persisted alongside an embedding,
// positionally aligned with the corpus
type SnippetRef struct {
	ID      string `json:"id"`
	Section string `json:"section"`
}

// CacheVersion is the schema version written into persisted caches.
// A persisted cache carrying any other version is treated as absent.
const CacheVersion = 1

// EmbeddingCache holds the normalized embedding vectors for a corpus,
// keyed by the embedding model that produced them
type EmbeddingCache struct {
	ModelID string       `json:"model"`
	Vectors [][]float64  `json:"vectors"`
	Meta    []SnippetRef `json:"meta"`
	Version int          `json:"version"`
}

// SearchHit represents a single retrieval result with its similarity score
type SearchHit struct {
	Index   int     `json:"index"`
	Score   float64 `json:"score"`
	Snippet Snippet `json:"snippet"`
}

// Citation points at the snippet an answer was grounded on
type Citation struct {
	Index     int    `json:"index"`
	SnippetID string `json:"snippet_id"`
	Section   string `json:"section"`
}

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn represents one entry in the conversation history
type Turn struct {
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Answer represents the outcome of answering one question. Generated is
// false when the answer came from the extractive fallback path.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	Generated bool       `json:"generated"`
	Timestamp time.Time  `json:"timestamp"`
}
