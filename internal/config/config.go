package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize    = 5000 // characters
	DefaultChunkOverlap = 500  // characters
	DefaultTopK         = 4
	DefaultSessionID    = "default_session"

	SplitterWindow    = "window"
	SplitterRecursive = "recursive"

	ProviderHuggingface = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderOllama      = "ollama"
)

var ErrMissingCredentials = errors.New("missing credentials")

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Embedder EmbedderConfig `yaml:"embedder"`
	RAG      RAGConfig      `yaml:"rag"`
	Memo     MemoConfig     `yaml:"memo"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Session  SessionConfig  `yaml:"session"`
}

// LLMConfig points at an OpenAI compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url" env:"MEMO_LLM_BASE_URL"`
	Model   string        `yaml:"model" env:"MEMO_LLM_MODEL"`
	Key     string        `yaml:"-" env:"MEMO_LLM_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"MEMO_LLM_TIMEOUT"`
}

type EmbedderConfig struct {
	Provider string `yaml:"provider" env:"MEMO_EMBEDDING_PROVIDER"`
	BaseURL  string `yaml:"base_url" env:"MEMO_EMBEDDING_BASE_URL"`
	Model    string `yaml:"model" env:"MEMO_EMBEDDING_MODEL"`
	Key      string `yaml:"-" env:"MEMO_EMBEDDING_KEY"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size" env:"MEMO_CHUNK_SIZE"`
	ChunkOverlap int    `yaml:"chunk_overlap" env:"MEMO_CHUNK_OVERLAP"`
	TopK         int    `yaml:"top_k" env:"MEMO_TOP_K"`
	Splitter     string `yaml:"splitter" env:"MEMO_SPLITTER"`
}

type MemoConfig struct {
	// Strict fails an answer that lacks one of the five memo sections.
	Strict bool `yaml:"strict" env:"MEMO_STRICT"`
}

type IndexConfig struct {
	ExportPath    string `yaml:"export_path" env:"MEMO_INDEX_EXPORT_PATH"`
	EncryptionKey string `yaml:"-" env:"MEMO_INDEX_ENCRYPTION_KEY"`
	Compress      bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"-" env:"MEMO_DATABASE_DSN"`
	Debug bool   `yaml:"debug" env:"MEMO_DATABASE_DEBUG"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"MEMO_LOG_LEVEL"`
	File  string `yaml:"file" env:"MEMO_LOG_FILE"`
}

type SessionConfig struct {
	DefaultID string `yaml:"default_id" env:"MEMO_SESSION_ID"`
}

// Credentials are the two secrets the operator has to hand over before
// anything else happens.
type Credentials struct {
	EmbeddingKey string
	LLMKey       string
}

// Validate reports every missing secret at once.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.EmbeddingKey) == "" {
		missing = append(missing, "embedding key")
	}
	if strings.TrimSpace(c.LLMKey) == "" {
		missing = append(missing, "llm key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Credentials returns whatever secrets came from the environment.
func (c *Config) Credentials() Credentials {
	return Credentials{EmbeddingKey: c.Embedder.Key, LLMKey: c.LLM.Key}
}

// LoadConfig starts from the defaults, overlays the yaml file at path, .env
// and the process environment. A value set explicitly, zero included, wins
// over the default. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional, same as the process environment
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	providerDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "gemma2-9b-it",
			Timeout: 2 * time.Minute,
		},
		Embedder: EmbedderConfig{Provider: ProviderHuggingface},
		RAG: RAGConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TopK:         DefaultTopK,
			Splitter:     SplitterWindow,
		},
		Log:     LogConfig{Level: "info", File: "memo-rag.log"},
		Session: SessionConfig{DefaultID: DefaultSessionID},
	}
}

// providerDefaults fills the embedder settings that depend on the provider
// picked by the file or the environment.
func providerDefaults(cfg *Config) {
	if cfg.Embedder.Model == "" {
		switch cfg.Embedder.Provider {
		case ProviderOpenAI:
			cfg.Embedder.Model = "text-embedding-3-small"
		case ProviderOllama:
			cfg.Embedder.Model = "nomic-embed-text"
		default:
			cfg.Embedder.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
	}
	if cfg.Embedder.BaseURL == "" && cfg.Embedder.Provider == ProviderOllama {
		cfg.Embedder.BaseURL = "http://localhost:11434"
	}
}

func (c *Config) validate() error {
	if c.RAG.ChunkSize <= 0 || c.RAG.TopK <= 0 {
		return fmt.Errorf("chunk size and top k must be positive")
	}
	if c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative")
	}
	if c.Session.DefaultID == "" {
		return fmt.Errorf("default session id must not be empty")
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.RAG.Splitter {
	case SplitterWindow, SplitterRecursive:
	default:
		return fmt.Errorf("unknown splitter: %s", c.RAG.Splitter)
	}
	switch c.Embedder.Provider {
	case ProviderHuggingface, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embedder.Provider)
	}
	if k := c.Index.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("index encryption key must be 32 bytes, got %d", len(k))
	}
	return nil
}

// Masked returns a copy that is safe to log.
func (c Config) Masked() Config {
	c.LLM.Key = mask(c.LLM.Key)
	c.Embedder.Key = mask(c.Embedder.Key)
	c.Index.EncryptionKey = mask(c.Index.EncryptionKey)
	c.Database.DSN = mask(c.Database.DSN)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
