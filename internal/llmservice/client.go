package llmservice

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"memo-rag/internal/config"
)

var ErrEmptyResponse = errors.New("llm returned no choices")

// reasoning models wrap their chain of thought in think tags
var thinkTag = regexp.MustCompile(`(?s)<think>.*?</think>`)

// NewLLM connects to an OpenAI compatible chat endpoint, Groq by default.
func NewLLM(llmConfig config.LLMConfig, key string) (llms.Model, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating llm client")
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// GenerateText sends the messages in a single call and returns the text of
// the first choice.
func GenerateText(ctx context.Context, llm llms.Model, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := thinkTag.ReplaceAllString(res.Choices[0].Content, "")
	return strings.TrimSpace(text), nil
}
