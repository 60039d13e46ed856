// Command indexer embeds a directory of text documents into a corpus file
// the gateway can load (JSON, or SQLite for .db/.sqlite/.sqlite3 outputs).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/adapters/corpus"
	"github.com/0xcro3dile/localrag-gateway/internal/adapters/embedding"
	"github.com/0xcro3dile/localrag-gateway/internal/adapters/loader"
	"github.com/0xcro3dile/localrag-gateway/internal/config"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/usecases"
	"github.com/0xcro3dile/localrag-gateway/internal/logging"
)

var (
	configPath   = flag.String("config", "gateway.yaml", "Path to the YAML config file (ollama settings)")
	docsDir      = flag.String("dir", "docs", "Directory of .txt/.md documents to index")
	outPath      = flag.String("out", "", "Corpus output path (defaults to corpus.path from config)")
	model        = flag.String("model", "", "Embedding model (defaults to ollama.embed_model)")
	chunkSize    = flag.Int("chunk-size", 500, "Chunk size in characters")
	chunkOverlap = flag.Int("overlap", 50, "Overlap between consecutive chunks")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("indexing failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	out := *outPath
	if out == "" {
		out = cfg.Corpus.Path
	}
	if out == "" {
		return fmt.Errorf("no output path: set -out or corpus.path")
	}
	embedModel := *model
	if embedModel == "" {
		embedModel = cfg.Ollama.EmbedModel
	}

	embedder, err := embedding.NewOllamaAdapter(cfg.Ollama.BaseURL, embedModel, cfg.Ollama.Timeout)
	if err != nil {
		return err
	}

	start := time.Now()
	docs, err := loader.NewMultiLoader().LoadDir(ctx, *docsDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents under %s", *docsDir)
	}
	log.Info().Int("documents", len(docs)).Str("dir", *docsDir).Msg("documents loaded")

	writer, closeWriter, err := corpus.OpenWriter(out)
	if err != nil {
		return fmt.Errorf("opening %s: %w", out, err)
	}
	defer closeWriter()

	n, err := usecases.NewIngestUseCase(embedder, writer, *chunkSize, *chunkOverlap).IngestAll(ctx, docs)
	if err != nil {
		return err
	}
	log.Info().
		Int("chunks", n).
		Str("out", out).
		Str("model", embedModel).
		Dur("took", time.Since(start)).
		Msg("corpus written")
	return nil
}
