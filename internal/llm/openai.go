package llm

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAILLM generates answers through the OpenAI chat completion API
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates an OpenAI generation client using the
// OPENAI_API_KEY environment variable
func NewOpenAILLM(model string) (*OpenAILLM, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, goerr.New("OPENAI_API_KEY environment variable not set")
	}

	return &OpenAILLM{
		client: openai.NewClient(key),
		model:  model,
	}, nil
}

// Generate runs one chat completion, streaming deltas when requested
func (o *OpenAILLM) Generate(ctx context.Context, req Request) (Result, error) {
	creq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	if !req.Stream {
		resp, err := o.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return nil, goerr.Wrap(ErrBackend, "openai completion failed", goerr.V("cause", err))
		}
		if len(resp.Choices) == 0 {
			return nil, goerr.Wrap(ErrBackend, "openai returned no choices")
		}
		return Completion{Text: resp.Choices[0].Message.Content}, nil
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, goerr.Wrap(ErrBackend, "openai stream setup failed", goerr.V("cause", err))
	}

	deltas := make(chan Delta)
	go func() {
		defer close(deltas)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case deltas <- Delta{Err: goerr.Wrap(ErrBackend, "openai stream failed", goerr.V("cause", err))}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			select {
			case deltas <- Delta{Text: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return Stream{Deltas: deltas}, nil
}

func toChatMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

// Warm checks the API is reachable with the configured credentials
func (o *OpenAILLM) Warm(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return goerr.Wrap(ErrBackend, "openai API unreachable", goerr.V("cause", err))
	}
	return nil
}

// Name identifies this backend
func (o *OpenAILLM) Name() string {
	return "openai/" + o.model
}
