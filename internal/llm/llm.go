// Package llm defines the generation backend contract and its Ollama and
// OpenAI implementations. Backends are best-effort: callers must be
// prepared for any call to fail and fall back to extractive answers.
package llm

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// ErrBackend marks any failure from a generation backend. It is always
// recoverable: the orchestrator answers extractively instead.
var ErrBackend = goerr.New("generation backend error")

// Message roles understood by every backend
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry of a chat-shaped prompt
type Message struct {
	Role    string
	Content string
}

// Request carries the prompt and generation parameters for one call
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Delta is one increment of a streamed completion. A non-nil Err
// terminates the stream; the text received so far remains valid.
type Delta struct {
	Text string
	Err  error
}

// Result is the outcome of a generation call: either a Completion or a
// Stream. Callers must handle both variants.
type Result interface {
	isResult()
}

// Completion is a single, complete generated answer
type Completion struct {
	Text string
}

func (Completion) isResult() {}

// Stream delivers the answer incrementally. Chunk order is strictly
// sequential; the channel is closed after the final delta.
type Stream struct {
	Deltas <-chan Delta
}

func (Stream) isResult() {}

// Backend generates answers from a chat-shaped prompt
type Backend interface {
	// Generate runs one completion. With req.Stream set the backend may
	// return a Stream; otherwise it returns a Completion.
	Generate(ctx context.Context, req Request) (Result, error)

	// Warm verifies the backend is reachable and ready. Used during
	// session initialization; failure downgrades, it never blocks use.
	Warm(ctx context.Context) error

	// Name identifies the backend for logs and diagnostics.
	Name() string
}
