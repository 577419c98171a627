package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaLLM generates answers through the Ollama API
type OllamaLLM struct {
	Client *api.Client
	Model  string
}

// NewOllamaLLM creates a new Ollama generation client. An empty host
// falls back to the OLLAMA_HOST environment variable.
func NewOllamaLLM(host string, model string) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid ollama host", goerr.V("host", host))
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaLLM{
		Client: client,
		Model:  model,
	}, nil
}

// Generate runs one completion, streaming deltas when requested
func (o *OllamaLLM) Generate(ctx context.Context, req Request) (Result, error) {
	greq := o.buildRequest(req)

	if !req.Stream {
		var sb strings.Builder
		err := o.Client.Generate(ctx, greq, func(resp api.GenerateResponse) error {
			_, werr := sb.WriteString(resp.Response)
			return werr
		})
		if err != nil {
			return nil, goerr.Wrap(ErrBackend, "ollama generate failed", goerr.V("cause", err))
		}
		return Completion{Text: sb.String()}, nil
	}

	deltas := make(chan Delta)
	go func() {
		defer close(deltas)
		err := o.Client.Generate(ctx, greq, func(resp api.GenerateResponse) error {
			select {
			case deltas <- Delta{Text: resp.Response}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case deltas <- Delta{Err: goerr.Wrap(ErrBackend, "ollama stream failed", goerr.V("cause", err))}:
			case <-ctx.Done():
			}
		}
	}()
	return Stream{Deltas: deltas}, nil
}

// buildRequest flattens chat messages into Ollama's prompt/system shape
func (o *OllamaLLM) buildRequest(req Request) *api.GenerateRequest {
	var system string
	var prompt strings.Builder
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(m.Content)
	}

	stream := req.Stream
	return &api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt.String(),
		System: system,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
}

// Warm checks the Ollama server is reachable
func (o *OllamaLLM) Warm(ctx context.Context) error {
	if err := o.Client.Heartbeat(ctx); err != nil {
		return goerr.Wrap(ErrBackend, "ollama server unreachable", goerr.V("cause", err))
	}
	return nil
}

// Name identifies this backend
func (o *OllamaLLM) Name() string {
	return "ollama/" + o.Model
}
