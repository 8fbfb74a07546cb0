package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAG.ChunkSize != DefaultChunkSize || cfg.RAG.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("chunking = %d/%d, want %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, DefaultChunkSize, DefaultChunkOverlap)
	}
	if cfg.RAG.TopK != DefaultTopK {
		t.Errorf("top k = %d, want %d", cfg.RAG.TopK, DefaultTopK)
	}
	if cfg.Session.DefaultID != DefaultSessionID {
		t.Errorf("session = %q", cfg.Session.DefaultID)
	}
	if cfg.Embedder.Provider != ProviderHuggingface {
		t.Errorf("provider = %q", cfg.Embedder.Provider)
	}
	if cfg.LLM.Model != "gemma2-9b-it" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: llama-3.1-8b-instant
  timeout: 30s
embedder:
  provider: ollama
rag:
  top_k: 6
memo:
  strict: true
`)
	t.Setenv("MEMO_LLM_KEY", "llm-secret")
	t.Setenv("MEMO_EMBEDDING_KEY", "emb-secret")
	t.Setenv("MEMO_TOP_K", "8")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Embedder.BaseURL != "http://localhost:11434" || cfg.Embedder.Model != "nomic-embed-text" {
		t.Errorf("ollama defaults not applied: %+v", cfg.Embedder)
	}
	if cfg.RAG.TopK != 8 {
		t.Errorf("env should override file, top k = %d", cfg.RAG.TopK)
	}
	if !cfg.Memo.Strict {
		t.Error("strict not read")
	}
	creds := cfg.Credentials()
	if creds.LLMKey != "llm-secret" || creds.EmbeddingKey != "emb-secret" {
		t.Errorf("credentials = %+v", creds)
	}
	masked := cfg.Masked()
	if masked.LLM.Key != "****" || cfg.LLM.Key != "llm-secret" {
		t.Error("Masked must not touch the original")
	}
}

func TestLoadConfigKeepsExplicitZero(t *testing.T) {
	path := writeConfig(t, "rag:\n  chunk_size: 1000\n  chunk_overlap: 0\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAG.ChunkOverlap != 0 || cfg.RAG.ChunkSize != 1000 {
		t.Errorf("chunking = %d/%d, want 1000/0", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != DefaultTopK {
		t.Errorf("unset top k = %d, want default", cfg.RAG.TopK)
	}

	t.Setenv("MEMO_CHUNK_OVERLAP", "0")
	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAG.ChunkOverlap != 0 || cfg.RAG.ChunkSize != DefaultChunkSize {
		t.Errorf("chunking = %d/%d, want %d/0", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, DefaultChunkSize)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"overlap", "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n", "overlap"},
		{"negative overlap", "rag:\n  chunk_overlap: -1\n", "must not be negative"},
		{"zero top k", "rag:\n  top_k: 0\n", "must be positive"},
		{"splitter", "rag:\n  splitter: semantic\n", "unknown splitter"},
		{"provider", "embedder:\n  provider: cohere\n", "unknown embedding provider"},
		{"yaml", "rag: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		missing []string
	}{
		{"both", Credentials{EmbeddingKey: "a", LLMKey: "b"}, nil},
		{"no embedding", Credentials{LLMKey: "b"}, []string{"embedding key"}},
		{"no llm", Credentials{EmbeddingKey: "a", LLMKey: "  "}, []string{"llm key"}},
		{"none", Credentials{}, []string{"embedding key", "llm key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if len(tt.missing) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrMissingCredentials) {
				t.Fatalf("err = %v, want ErrMissingCredentials", err)
			}
			for _, m := range tt.missing {
				if !strings.Contains(err.Error(), m) {
					t.Errorf("error %q does not name %q", err, m)
				}
			}
		})
	}
}
