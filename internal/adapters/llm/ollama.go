// Package llm provides the Ollama LLM adapter.
// It implements ports.LLMService.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3"
)

// OllamaLLMAdapter implements ports.LLMService using the Ollama generate API.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *api.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string, timeout time.Duration) (*OllamaLLMAdapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 300 * time.Second // generation can be slow on local hardware
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url %q: %w", baseURL, err)
	}

	return &OllamaLLMAdapter{
		baseURL: baseURL,
		model:   model,
		client:  api.NewClient(base, &http.Client{Timeout: timeout}),
	}, nil
}

// Generate sends prompt with streaming disabled and returns the full response.
// Every failure wraps entities.ErrGeneration.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var (
		sb       strings.Builder
		received bool
	)
	start := time.Now()
	err := a.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		received = true
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: calling ollama at %s: %v", entities.ErrGeneration, a.baseURL, err)
	}
	if !received {
		return "", fmt.Errorf("%w: empty reply from %s", entities.ErrGeneration, a.baseURL)
	}

	log.Debug().Str("model", a.model).Dur("took", time.Since(start)).Msg("generation finished")
	return sb.String(), nil
}
