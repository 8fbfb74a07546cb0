package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	hfembeddings "github.com/tmc/langchaingo/embeddings/huggingface"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"memo-rag/internal/config"
)

// NewEmbedder creates the embedder for the configured provider. The key is
// handed over by the operator and never checked here, a wrong key only shows
// up when the first request fails.
func NewEmbedder(cfg config.EmbedderConfig, key string) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	switch cfg.Provider {
	case config.ProviderHuggingface, "":
		return newHuggingfaceEmbedder(cfg, key)
	case config.ProviderOpenAI:
		return newOpenAIEmbedder(cfg, key)
	case config.ProviderOllama:
		return newOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func newHuggingfaceEmbedder(cfg config.EmbedderConfig, key string) (embeddings.Embedder, error) {
	opts := []huggingface.Option{
		huggingface.WithToken(key),
		huggingface.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, huggingface.WithURL(cfg.BaseURL))
	}
	llm, err := huggingface.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("huggingface client: %w", err)
	}
	embedder, err := hfembeddings.NewHuggingface(
		hfembeddings.WithClient(*llm),
		hfembeddings.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embedder, nil
}

func newOpenAIEmbedder(cfg config.EmbedderConfig, key string) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return newEmbedder(llm)
}

// ollama runs locally and ignores the key
func newOllamaEmbedder(cfg config.EmbedderConfig) (embeddings.Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return newEmbedder(llm)
}

func newEmbedder(client embeddings.EmbedderClient) (embeddings.Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, err
	}
	return embedder, nil
}

// EmbedFunc adapts an embedder to the single text signature used by the
// vector index.
func EmbedFunc(embedder embeddings.Embedder) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
