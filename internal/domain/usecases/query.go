// Package usecases - query.go answers a user query with retrieval-augmented generation.
package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/ports"
)

const (
	// FallbackAnswer is shown to the user when any remote step of the pipeline fails.
	FallbackAnswer = "Failed to get a response from the AI model."

	// EmptyAnswer is shown when the model answered with nothing.
	EmptyAnswer = "No response from AI model."

	// DefaultTopK is the number of context chunks put into a prompt.
	DefaultTopK = 3
)

// QueryUseCase embeds a query, ranks the corpus and asks the LLM for a grounded answer.
type QueryUseCase struct {
	embedder ports.EmbeddingService
	index    ports.SimilarityIndex
	llm      ports.LLMService
	prompts  PromptAssembler
	topK     int
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingService,
	index ports.SimilarityIndex,
	llm ports.LLMService,
	prompts PromptAssembler,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QueryUseCase{
		embedder: embedder,
		index:    index,
		llm:      llm,
		prompts:  prompts,
		topK:     topK,
	}
}

// Answer returns the model's answer for query.
// Remote and ranking failures degrade to FallbackAnswer; the only error returned
// is ErrNotInitialized, when the corpus has not finished loading.
func (uc *QueryUseCase) Answer(ctx context.Context, query string) (string, error) {
	if !uc.index.Ready() {
		log.Error().Msg("query received before the similarity index was loaded")
		return "", entities.ErrNotInitialized
	}

	// 1. Embed the query
	queryEmbedding, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("embedding query failed")
		return FallbackAnswer, nil
	}

	// 2. Rank the corpus
	ranked, err := uc.index.Rank(queryEmbedding, uc.topK)
	if err != nil {
		if errors.Is(err, entities.ErrDimensionMismatch) {
			log.Error().Err(err).Msg("query and corpus were embedded with different models; check the embedding model configuration")
		} else {
			log.Error().Err(err).Msg("ranking corpus failed")
		}
		return FallbackAnswer, nil
	}

	// 3. Generate
	prompt := uc.prompts.Assemble(query, ranked)
	answer, err := uc.llm.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Int("context_chunks", len(ranked)).Msg("generating answer failed")
		return FallbackAnswer, nil
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return EmptyAnswer, nil
	}
	log.Debug().Int("context_chunks", len(ranked)).Int("answer_len", len(answer)).Msg("answered query")
	return answer, nil
}
