// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/ports"
)

// IngestUseCase turns documents into an embedded corpus.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	writer       ports.CorpusWriter
	chunkSize    int
	chunkOverlap int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	writer ports.CorpusWriter,
	chunkSize, chunkOverlap int,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 500 // characters
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	return &IngestUseCase{
		embedder:     embedder,
		writer:       writer,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Embed chunks a document and embeds every chunk.
func (uc *IngestUseCase) Embed(ctx context.Context, doc *entities.Document) ([]entities.EmbeddableChunk, error) {
	chunks := uc.chunkDocument(doc)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", doc.Name, err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	return chunks, nil
}

// IngestAll embeds every document and writes the resulting corpus in one go.
// It returns the number of chunks written.
func (uc *IngestUseCase) IngestAll(ctx context.Context, docs []*entities.Document) (int, error) {
	var corpus []entities.EmbeddableChunk
	for _, doc := range docs {
		chunks, err := uc.Embed(ctx, doc)
		if err != nil {
			return 0, err
		}
		log.Info().Str("document", doc.Name).Int("chunks", len(chunks)).Msg("document embedded")
		corpus = append(corpus, chunks...)
	}
	if err := uc.writer.Write(ctx, corpus); err != nil {
		return 0, fmt.Errorf("writing corpus: %w", err)
	}
	return len(corpus), nil
}

// chunkDocument splits document content into overlapping chunks.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.EmbeddableChunk {
	content := strings.TrimSpace(doc.Content)
	if len(content) == 0 {
		return nil
	}

	var chunks []entities.EmbeddableChunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + uc.chunkSize
		if end > len(content) {
			end = len(content)
		}

		// Try to break at word boundary
		if end < len(content) {
			lastSpace := strings.LastIndex(content[start:end], " ")
			if lastSpace > 0 {
				end = start + lastSpace
			}
		}

		text := strings.TrimSpace(content[start:end])
		if len(text) > 0 {
			chunks = append(chunks, entities.EmbeddableChunk{
				ID:   chunkID(doc.ID, index),
				Text: text,
			})
			index++
		}

		if end >= len(content) {
			break
		}
		next := end - uc.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// chunkID is deterministic so re-indexing the same file yields the same ids.
func chunkID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", docID, index))).String()
}
