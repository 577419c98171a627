package embedding

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder uses the OpenAI API for embeddings
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an OpenAI embedder using the OPENAI_API_KEY
// environment variable
func NewOpenAIEmbedder(model string) (*OpenAIEmbedder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, goerr.New("OPENAI_API_KEY environment variable not set")
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(key),
		model:  model,
	}, nil
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if len(text) == 0 {
		return nil, goerr.New("cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "OpenAI embedding request failed")
	}

	if len(resp.Data) == 0 {
		return nil, goerr.New("no embedding data returned from API")
	}

	v32 := resp.Data[0].Embedding
	v := make([]float64, len(v32))
	for i := range v32 {
		v[i] = float64(v32[i])
	}

	return v, nil
}

// ModelID returns the cache key identity of this backend
func (e *OpenAIEmbedder) ModelID() string {
	return "openai/" + e.model
}
