// Package orchestrator runs one answering turn end to end: embed the
// question, rank the cached corpus, compose a grounded prompt, and call
// the generation backend. Generation is best-effort; retrieval is the
// guaranteed baseline, so every turn produces an answer.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"resume-rag/internal/embedding"
	"resume-rag/internal/llm"
	"resume-rag/internal/models"
	"resume-rag/internal/search"
	"resume-rag/internal/vectormath"
)

const (
	// DefaultTopK is how many snippets ground the prompt
	DefaultTopK = 6

	// DefaultTimeout bounds one generation call. Expiry forces the
	// extractive fallback instead of hanging the turn.
	DefaultTimeout = 30 * time.Second

	DefaultTemperature = 0.2
	DefaultMaxTokens   = 512
)

// systemPolicy constrains the model to the retrieved context
const systemPolicy = `You are an assistant answering questions about a candidate's resume.
Answer using ONLY the numbered context snippets below. Cite the snippets
you used with their bracketed index, e.g. [2]. If the context does not
contain the answer, say you don't know based on the resume. Keep answers
concise and factual.`

// fallbackNotice is appended when the answer is extractive
const fallbackNotice = "(Answer generation was unavailable; the excerpts above are the most relevant resume passages.)"

// Config tunes one orchestrator. Zero values take the defaults above.
type Config struct {
	TopK        int
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Orchestrator answers questions against an embedded corpus
type Orchestrator struct {
	gen llm.Backend
	cfg Config

	// OnDelta, when set, observes the growing partial answer after each
	// streamed chunk. Called sequentially from the turn's goroutine.
	OnDelta func(partial string)
}

// New creates an orchestrator. A nil generation backend is allowed and
// yields extractive answers only.
func New(gen llm.Backend, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Orchestrator{gen: gen, cfg: cfg}
}

// Answer runs one turn. Retrieval errors (embedding failure, dimension
// mismatch) are returned; generation failures of any kind degrade to the
// extractive answer and never propagate.
func (o *Orchestrator) Answer(ctx context.Context, question string,
	emb embedding.Backend, cache *models.EmbeddingCache, snippets []models.Snippet) (*models.Answer, error) {

	raw, err := emb.Embed(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed question")
	}
	query := vectormath.Normalize(raw)

	hits, err := search.TopK(cache, snippets, query, o.cfg.TopK)
	if err != nil {
		return nil, err
	}

	citations := make([]models.Citation, 0, len(hits))
	for i, h := range hits {
		citations = append(citations, models.Citation{
			Index:     i + 1,
			SnippetID: h.Snippet.ID,
			Section:   h.Snippet.Section,
		})
	}

	if o.gen == nil {
		return o.extractive(hits, citations), nil
	}

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	text, err := o.generate(genCtx, question, hits)
	if err != nil {
		slog.Warn("generation failed, answering extractively",
			"backend", o.gen.Name(), "error", err)
		return o.extractive(hits, citations), nil
	}

	return &models.Answer{
		Text:      text,
		Citations: citations,
		Generated: true,
		Timestamp: time.Now(),
	}, nil
}

// generate calls the backend and accumulates the answer. A panicking
// backend is treated as a failed one.
func (o *Orchestrator) generate(ctx context.Context, question string, hits []models.SearchHit) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.Wrap(llm.ErrBackend, "generation backend panicked", goerr.V("recover", r))
		}
	}()

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPolicy},
			{Role: llm.RoleUser, Content: buildPrompt(question, hits)},
		},
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Stream:      o.cfg.Stream,
	}

	result, err := o.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	switch r := result.(type) {
	case llm.Completion:
		return r.Text, nil
	case llm.Stream:
		return o.drain(ctx, r)
	default:
		return "", goerr.Wrap(llm.ErrBackend, "unknown generation result", goerr.V("type", fmt.Sprintf("%T", result)))
	}
}

// drain accumulates a stream into the final answer, surfacing the
// partial buffer to the observer after every chunk
func (o *Orchestrator) drain(ctx context.Context, s llm.Stream) (string, error) {
	var sb strings.Builder
	for {
		select {
		case d, ok := <-s.Deltas:
			if !ok {
				return sb.String(), nil
			}
			if d.Err != nil {
				return "", d.Err
			}
			sb.WriteString(d.Text)
			if o.OnDelta != nil {
				o.OnDelta(sb.String())
			}
		case <-ctx.Done():
			return "", goerr.Wrap(llm.ErrBackend, "generation timed out", goerr.V("cause", ctx.Err()))
		}
	}
}

// buildPrompt numbers each retrieved snippet so the model can cite it
func buildPrompt(question string, hits []models.SearchHit) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, h := range hits {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, h.Snippet.Section, h.Snippet.Text)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

// extractive composes the no-generation answer: the literal retrieved
// snippets prefixed by their citation index. This path cannot fail.
func (o *Orchestrator) extractive(hits []models.SearchHit, citations []models.Citation) *models.Answer {
	var sb strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, h.Snippet.Text)
	}
	sb.WriteString("\n")
	sb.WriteString(fallbackNotice)

	return &models.Answer{
		Text:      sb.String(),
		Citations: citations,
		Generated: false,
		Timestamp: time.Now(),
	}
}
