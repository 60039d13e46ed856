// Package corpus reads and writes pre-embedded corpus files.
package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/adapters/vectordb"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/ports"
)

// JSONFile is a corpus stored as JSON. The document is either an array of
// chunks or an object holding that array under "embeddings" (or "embedding").
type JSONFile struct {
	Path string
}

// NewJSONFile creates a JSON corpus at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path}
}

// rawChunk defers embedding decoding so a bad entry can be skipped on its own.
type rawChunk struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Embedding json.RawMessage `json:"embedding"`
}

// Chunks reads and parses the file.
// Valid JSON of an unexpected shape yields an empty corpus and a warning.
// A missing, unreadable or unparseable file is an entities.ErrCorpusLoad error.
func (f *JSONFile) Chunks(ctx context.Context) ([]entities.EmbeddableChunk, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrCorpusLoad, err)
	}
	return Parse(data)
}

// Location returns the file path.
func (f *JSONFile) Location() string {
	return f.Path
}

// Parse decodes a corpus document. See JSONFile for the accepted shapes.
func Parse(data []byte) ([]entities.EmbeddableChunk, error) {
	entries, err := entriesOf(data)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		log.Warn().Msg(`invalid corpus format, expected an array or an object with an "embeddings" key`)
		return []entities.EmbeddableChunk{}, nil
	}

	chunks := make([]entities.EmbeddableChunk, 0, len(entries))
	for i, entry := range entries {
		chunk, ok := decodeEntry(entry)
		if !ok {
			log.Warn().Int("entry", i).Msg("skipping corpus entry without a numeric embedding")
			continue
		}
		chunks = append(chunks, chunk)
	}

	if len(entries) > 0 && len(chunks) == 0 {
		log.Warn().Int("entries", len(entries)).Msg("no valid chunks remained after filtering")
	}
	return chunks, nil
}

// entriesOf returns the raw chunk entries, or nil when the document has no chunk array.
func entriesOf(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty corpus document", entities.ErrCorpusLoad)
	}

	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrCorpusLoad, err)
		}
		if entries == nil {
			entries = []json.RawMessage{}
		}
		return entries, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrCorpusLoad, err)
		}
		for _, key := range []string{"embeddings", "embedding"} {
			var entries []json.RawMessage
			if raw, ok := obj[key]; ok && json.Unmarshal(raw, &entries) == nil && entries != nil {
				return entries, nil
			}
		}
		return nil, nil
	default:
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: not a JSON document", entities.ErrCorpusLoad)
		}
		return nil, nil
	}
}

func decodeEntry(entry json.RawMessage) (entities.EmbeddableChunk, bool) {
	var raw rawChunk
	if err := json.Unmarshal(entry, &raw); err != nil {
		return entities.EmbeddableChunk{}, false
	}
	var embedding []float64
	if err := json.Unmarshal(raw.Embedding, &embedding); err != nil || len(embedding) == 0 {
		return entities.EmbeddableChunk{}, false
	}
	return entities.EmbeddableChunk{ID: raw.ID, Text: raw.Text, Embedding: embedding}, true
}

// JSONWriter writes a corpus as an indented JSON array.
type JSONWriter struct {
	Path string
}

// NewJSONWriter creates a writer for path.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{Path: path}
}

// Write replaces the file with chunks, via a temp file and rename so readers
// never see a partial document.
func (w *JSONWriter) Write(ctx context.Context, chunks []entities.EmbeddableChunk) error {
	if chunks == nil {
		chunks = []entities.EmbeddableChunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}

	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".corpus-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing corpus: %w", err)
	}
	return os.Rename(tmp.Name(), w.Path)
}

// IsSQLite reports whether path names a SQLite corpus.
func IsSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Open returns the corpus source for path, picked by extension.
// An empty path yields a nil source: no corpus configured.
func Open(path string) (ports.CorpusSource, func() error, error) {
	noop := func() error { return nil }
	if strings.TrimSpace(path) == "" {
		return nil, noop, nil
	}
	if IsSQLite(path) {
		if _, err := os.Stat(path); err != nil {
			return nil, noop, fmt.Errorf("%w: %v", entities.ErrCorpusLoad, err)
		}
		store, err := vectordb.NewSQLiteStore(path)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %v", entities.ErrCorpusLoad, err)
		}
		return store, store.Close, nil
	}
	return NewJSONFile(path), noop, nil
}

// OpenWriter returns the corpus writer for path, picked by extension.
func OpenWriter(path string) (ports.CorpusWriter, func() error, error) {
	if IsSQLite(path) {
		store, err := vectordb.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return NewJSONWriter(path), func() error { return nil }, nil
}
