// Command gateway serves the websocket chat gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/adapters/corpus"
	"github.com/0xcro3dile/localrag-gateway/internal/adapters/embedding"
	"github.com/0xcro3dile/localrag-gateway/internal/adapters/filewatcher"
	"github.com/0xcro3dile/localrag-gateway/internal/adapters/llm"
	"github.com/0xcro3dile/localrag-gateway/internal/adapters/vectordb"
	"github.com/0xcro3dile/localrag-gateway/internal/config"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/localrag-gateway/internal/infrastructure/http"
	"github.com/0xcro3dile/localrag-gateway/internal/infrastructure/ws"
	"github.com/0xcro3dile/localrag-gateway/internal/logging"
)

var configPath = flag.String("config", "gateway.yaml", "Path to the YAML config file")

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
		log.Fatal().Err(err).Msg("gateway stopped")
	}
	log.Info().Msg("gateway stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	embedder, err := embedding.NewOllamaAdapter(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel, cfg.Ollama.Timeout)
	if err != nil {
		return err
	}
	generator, err := llm.NewOllamaLLMAdapter(cfg.Ollama.BaseURL, cfg.Ollama.GenerateModel, cfg.Ollama.Timeout)
	if err != nil {
		return err
	}

	// Corpus
	source, closeSource, err := corpus.Open(cfg.Corpus.Path)
	if err != nil {
		if cfg.Corpus.Required {
			return err
		}
		log.Warn().Err(err).Msg("corpus unavailable, answers will not be grounded")
	}
	defer closeSource()

	index := vectordb.NewIndex()
	if err := index.Load(ctx, source); err != nil && cfg.Corpus.Required {
		return err
	}

	if cfg.Corpus.Watch && source != nil {
		watcher, err := filewatcher.NewFSNotifyWatcher()
		if err != nil {
			return fmt.Errorf("creating corpus watcher: %w", err)
		}
		defer watcher.Stop()
		if err := watchCorpus(ctx, watcher, cfg.Corpus.Path, index, reloadDebounce); err != nil {
			log.Warn().Err(err).Str("path", cfg.Corpus.Path).Msg("corpus hot reload disabled")
		}
	}

	// Chat
	query := usecases.NewQueryUseCase(embedder, index, generator,
		usecases.NewPromptAssembler(cfg.Chat.SourceTitle), cfg.Chat.TopK)
	registry := usecases.NewSessionRegistry(cfg.Chat.DefaultDisplayName)
	hub := ws.NewHub()
	chat := ws.NewHandler(registry, query, hub, ws.Options{
		Greeting:     cfg.Chat.Greeting,
		QueryTimeout: cfg.Chat.QueryTimeout,
	})
	go ws.NewHeartbeat(hub, cfg.Chat.HeartbeatInterval).Run(ctx)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}
	log.Info().
		Str("ollama", cfg.Ollama.BaseURL).
		Str("embed_model", cfg.Ollama.EmbedModel).
		Str("generate_model", cfg.Ollama.GenerateModel).
		Int("chunks", index.Len()).
		Msg("gateway ready")

	return httpserver.NewServer(chat, query, registry, index).Serve(ctx, ln)
}
