package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

// SQLiteStore keeps a pre-embedded corpus in a SQLite file.
// It implements ports.CorpusSource and ports.CorpusWriter.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the corpus database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite corpus path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding TEXT,
		position INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_position ON chunks(position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Write replaces the stored corpus with chunks, preserving their order.
func (s *SQLiteStore) Write(ctx context.Context, chunks []entities.EmbeddableChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, text, embedding, position)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.Text, string(embeddingJSON), i); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Chunks returns every stored chunk with a usable embedding, in insertion order.
// Rows with a missing or non-numeric embedding are skipped with a warning.
func (s *SQLiteStore) Chunks(ctx context.Context) ([]entities.EmbeddableChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", entities.ErrCorpusLoad, err)
	}
	defer rows.Close()

	var chunks []entities.EmbeddableChunk
	skipped := 0
	for rows.Next() {
		var chunk entities.EmbeddableChunk
		var embeddingJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Text, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", entities.ErrCorpusLoad, err)
		}

		if !embeddingJSON.Valid {
			skipped++
			log.Warn().Str("chunk", chunk.ID).Msg("skipping chunk without embedding")
			continue
		}
		if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil || len(chunk.Embedding) == 0 {
			skipped++
			log.Warn().Str("chunk", chunk.ID).Msg("skipping chunk with invalid embedding")
			continue
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading rows: %v", entities.ErrCorpusLoad, err)
	}

	if skipped > 0 && len(chunks) == 0 {
		log.Warn().Int("skipped", skipped).Msg("no valid chunks remained after filtering")
	}
	return chunks, nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string {
	return s.path
}

// Clear removes all data from the store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ChunkCount returns the number of stored chunks.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}
