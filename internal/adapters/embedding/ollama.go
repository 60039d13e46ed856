// Package embedding provides the Ollama embedding adapter.
// It implements ports.EmbeddingService; the domain layer knows nothing about Ollama.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
)

// OllamaAdapter implements ports.EmbeddingService using the Ollama API.
type OllamaAdapter struct {
	baseURL string
	model   string
	client  *api.Client
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
func NewOllamaAdapter(baseURL, model string, timeout time.Duration) (*OllamaAdapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url %q: %w", baseURL, err)
	}

	return &OllamaAdapter{
		baseURL: baseURL,
		model:   model,
		client:  api.NewClient(base, &http.Client{Timeout: timeout}),
	}, nil
}

// Embed generates an embedding for a single text.
// Every failure wraps entities.ErrEmbedding.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float64, error) {
	log.Debug().Str("model", a.model).Int("text_len", len(text)).Msg("embedding request")

	resp, err := a.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  a.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: calling ollama at %s: %v", entities.ErrEmbedding, a.baseURL, err)
	}
	if resp == nil || len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: response from %s has no embedding", entities.ErrEmbedding, a.baseURL)
	}

	log.Debug().Int("dims", len(resp.Embedding)).Msg("embedding received")
	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts sequentially.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		emb, err := a.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
