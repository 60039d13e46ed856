// Package vectordb provides the similarity index and corpus stores.
// Index implements ports.SimilarityIndex over an in-memory, read-only corpus.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/ports"
)

// DefaultRankK is used when Rank is called with a non-positive k.
const DefaultRankK = 3

// snapshot is an immutable view of the corpus. It is never mutated after publish.
type snapshot struct {
	chunks []entities.EmbeddableChunk
	source string
}

// Index is an in-memory similarity index.
// Loaded corpora are published as immutable snapshots, so Rank never locks.
type Index struct {
	current atomic.Pointer[snapshot]

	mu     sync.Mutex // serializes Load and Reload
	source ports.CorpusSource
}

// NewIndex creates an index that is not ready until Load is called.
func NewIndex() *Index {
	return &Index{}
}

// Load reads the corpus from source. It is idempotent: later calls are ignored.
// A nil source means no corpus is configured and yields an empty, ready index.
// When the source fails the index still becomes ready with an empty corpus and
// the returned error wraps entities.ErrCorpusLoad.
func (ix *Index) Load(ctx context.Context, source ports.CorpusSource) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.current.Load() != nil {
		log.Warn().Msg("similarity index already loaded")
		return nil
	}

	if source == nil {
		log.Warn().Msg("no corpus configured, answers will not be grounded")
		ix.current.Store(&snapshot{})
		return nil
	}

	ix.source = source
	chunks, err := source.Chunks(ctx)
	if err != nil {
		ix.current.Store(&snapshot{source: source.Location()})
		log.Error().Err(err).Str("source", source.Location()).Msg("failed to load corpus, continuing without context")
		return fmt.Errorf("loading %s: %w", source.Location(), wrapCorpusErr(err))
	}

	ix.current.Store(&snapshot{chunks: chunks, source: source.Location()})
	log.Info().Int("chunks", len(chunks)).Str("source", source.Location()).Msg("corpus loaded")
	return nil
}

// Reload re-reads the source given to Load and swaps in the new corpus.
// On failure the previous corpus stays in place.
func (ix *Index) Reload(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.source == nil {
		return entities.ErrNotInitialized
	}
	chunks, err := ix.source.Chunks(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", ix.source.Location()).Msg("corpus reload failed, keeping previous corpus")
		return fmt.Errorf("reloading %s: %w", ix.source.Location(), wrapCorpusErr(err))
	}
	ix.current.Store(&snapshot{chunks: chunks, source: ix.source.Location()})
	log.Info().Int("chunks", len(chunks)).Str("source", ix.source.Location()).Msg("corpus reloaded")
	return nil
}

// Ready reports whether Load has completed.
func (ix *Index) Ready() bool {
	return ix.current.Load() != nil
}

// Len returns the number of chunks in the current corpus.
func (ix *Index) Len() int {
	s := ix.current.Load()
	if s == nil {
		return 0
	}
	return len(s.chunks)
}

// Rank scores every chunk against query and returns the k best, highest first.
// An empty corpus yields an empty result. A chunk whose embedding length differs
// from the query fails the whole call with entities.ErrDimensionMismatch.
func (ix *Index) Rank(query []float64, k int) ([]entities.RankedChunk, error) {
	s := ix.current.Load()
	if s == nil {
		return nil, entities.ErrNotInitialized
	}
	if k <= 0 {
		k = DefaultRankK
	}

	if len(s.chunks) == 0 {
		log.Debug().Msg("corpus is empty, ranking nothing")
		return []entities.RankedChunk{}, nil
	}

	results := make([]entities.RankedChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if len(chunk.Embedding) != len(query) {
			log.Error().
				Int("query_dims", len(query)).
				Int("chunk_dims", len(chunk.Embedding)).
				Str("chunk", chunk.ID).
				Msg("vector length mismatch, check the embedding models")
			return nil, fmt.Errorf("chunk %s has %d dimensions, query has %d: %w",
				chunk.ID, len(chunk.Embedding), len(query), entities.ErrDimensionMismatch)
		}
		results = append(results, entities.RankedChunk{
			EmbeddableChunk: chunk,
			Similarity:      CosineSimilarity(query, chunk.Embedding),
		})
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	// Take top K
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// CosineSimilarity calculates dot(a,b)/(|a||b|). It is 0 when either norm is 0
// or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors just past 1.
	return math.Max(-1, math.Min(1, sim))
}

func wrapCorpusErr(err error) error {
	if errors.Is(err, entities.ErrCorpusLoad) {
		return err
	}
	return fmt.Errorf("%w: %v", entities.ErrCorpusLoad, err)
}
