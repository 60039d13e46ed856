// Package config loads gateway settings from a YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the listening socket.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// OllamaConfig points at the remote embedding and generation service.
type OllamaConfig struct {
	BaseURL       string        `yaml:"base_url"`
	EmbedModel    string        `yaml:"embed_model"`
	GenerateModel string        `yaml:"generate_model"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CorpusConfig locates the pre-embedded corpus.
type CorpusConfig struct {
	Path string `yaml:"path"`
	// Required makes a configured but unloadable corpus fatal at startup.
	Required bool `yaml:"required"`
	// Watch reloads the corpus when the file changes.
	Watch bool `yaml:"watch"`
}

// ChatConfig tunes the chat protocol and the retrieval pipeline.
type ChatConfig struct {
	// Greeting is sent after the init frame; %s is replaced by the display name.
	Greeting           string        `yaml:"greeting"`
	DefaultDisplayName string        `yaml:"default_display_name"`
	SourceTitle        string        `yaml:"source_title"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	TopK               int           `yaml:"top_k"`
	QueryTimeout       time.Duration `yaml:"query_timeout"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Ollama OllamaConfig `yaml:"ollama"`
	Corpus CorpusConfig `yaml:"corpus"`
	Chat   ChatConfig   `yaml:"chat"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Ollama: OllamaConfig{
			BaseURL:       "http://localhost:11434",
			EmbedModel:    "nomic-embed-text",
			GenerateModel: "llama3",
			Timeout:       2 * time.Minute,
		},
		Corpus: CorpusConfig{Required: true},
		Chat: ChatConfig{
			Greeting:           "Hello %s! Ask me anything about the reference material.",
			DefaultDisplayName: "Guest",
			HeartbeatInterval:  time.Second,
			TopK:               3,
			QueryTimeout:       5 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a .env file if present, then the YAML file at path (missing file
// means defaults), then applies environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("OLLAMA_API_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		cfg.Ollama.EmbedModel = v
	}
	if v := os.Getenv("GENERATE_MODEL"); v != "" {
		cfg.Ollama.GenerateModel = v
	}
	if v := os.Getenv("EMBEDDING_FILE_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = def.Ollama.BaseURL
	}
	cfg.Ollama.BaseURL = strings.TrimRight(cfg.Ollama.BaseURL, "/")
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = def.Ollama.EmbedModel
	}
	if cfg.Ollama.GenerateModel == "" {
		cfg.Ollama.GenerateModel = def.Ollama.GenerateModel
	}
	if cfg.Ollama.Timeout <= 0 {
		cfg.Ollama.Timeout = def.Ollama.Timeout
	}
	if cfg.Chat.Greeting == "" {
		cfg.Chat.Greeting = def.Chat.Greeting
	}
	if cfg.Chat.DefaultDisplayName == "" {
		cfg.Chat.DefaultDisplayName = def.Chat.DefaultDisplayName
	}
	if cfg.Chat.HeartbeatInterval <= 0 {
		cfg.Chat.HeartbeatInterval = def.Chat.HeartbeatInterval
	}
	if cfg.Chat.TopK <= 0 {
		cfg.Chat.TopK = def.Chat.TopK
	}
	if cfg.Chat.QueryTimeout <= 0 {
		cfg.Chat.QueryTimeout = def.Chat.QueryTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Ollama.BaseURL, "http://") && !strings.HasPrefix(c.Ollama.BaseURL, "https://") {
		return fmt.Errorf("ollama.base_url must be an http(s) url, got %q", c.Ollama.BaseURL)
	}
	if c.Chat.HeartbeatInterval < 10*time.Millisecond {
		return fmt.Errorf("chat.heartbeat_interval too small: %s", c.Chat.HeartbeatInterval)
	}
	return nil
}
