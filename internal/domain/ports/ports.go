// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate produces a complete, non-streamed response for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// SimilarityIndex ranks corpus chunks against a query embedding.
type SimilarityIndex interface {
	// Rank returns at most k chunks ordered by descending similarity.
	Rank(query []float64, k int) ([]entities.RankedChunk, error)

	// Ready reports whether the corpus load has completed.
	Ready() bool
}

// CorpusSource reads pre-embedded chunks.
type CorpusSource interface {
	// Chunks returns every valid chunk of the corpus.
	Chunks(ctx context.Context) ([]entities.EmbeddableChunk, error)

	// Location describes where the corpus lives, for logging and watching.
	Location() string
}

// CorpusWriter persists pre-embedded chunks.
type CorpusWriter interface {
	Write(ctx context.Context, chunks []entities.EmbeddableChunk) error
}

// DocumentLoader reads and parses documents from various formats.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// FileWatcher monitors a file for changes.
type FileWatcher interface {
	// Watch starts monitoring the file and emits events.
	Watch(ctx context.Context, path string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
