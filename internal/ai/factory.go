package ai

import (
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/aigrader/internal/ai/anthropic"
	"github.com/kiranshivaraju/aigrader/internal/ai/mock"
	"github.com/kiranshivaraju/aigrader/internal/ai/ollama"
	"github.com/kiranshivaraju/aigrader/internal/ai/openai"
	"github.com/kiranshivaraju/aigrader/internal/ai/openrouter"
	"github.com/kiranshivaraju/aigrader/internal/ai/vllm"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at worker startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "openrouter":
		return openrouter.NewProvider(cfg.OpenRouter), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, openrouter, anthropic, mock", cfg.Provider)
	}
}

// NewGraderFromConfig builds the provider named by cfg and wraps it in a Grader
// with the configured model aliases and sentiment model.
func NewGraderFromConfig(cfg config.AIConfig, logger *slog.Logger) (*Grader, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewGrader(provider,
		WithModelAliases(cfg.Models),
		WithSentimentModel(cfg.SentimentModel),
		WithGraderLogger(logger),
	), nil
}
