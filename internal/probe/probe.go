// Package probe inspects the runtime environment for the capabilities
// the answering pipeline would like to have. Every finding is advisory:
// a missing capability downgrades behavior, it never blocks startup.
package probe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"resume-rag/internal/llm"
)

// warmTimeout bounds the reachability check so a dead backend cannot
// stall startup
const warmTimeout = 5 * time.Second

// Probe checks the generation backend and related environment and
// returns human-readable warnings. An empty slice means everything the
// pipeline can use is available.
func Probe(ctx context.Context, gen llm.Backend) []string {
	var warnings []string

	if gen == nil {
		warnings = append(warnings,
			"no generation backend configured: answers will be extractive excerpts only")
		return warnings
	}

	wctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()
	if err := gen.Warm(wctx); err != nil {
		warnings = append(warnings, fmt.Sprintf(
			"generation backend %s is unreachable (%v): answers will fall back to extractive excerpts", gen.Name(), err))
	}

	if strings.HasPrefix(gen.Name(), "ollama/") && os.Getenv("OLLAMA_HOST") == "" {
		warnings = append(warnings,
			"OLLAMA_HOST is not set: using the default http://127.0.0.1:11434")
	}
	if strings.HasPrefix(gen.Name(), "openai/") && os.Getenv("OPENAI_API_KEY") == "" {
		warnings = append(warnings,
			"OPENAI_API_KEY is not set: OpenAI calls will fail and answers will be extractive")
	}

	return warnings
}
