package openrouter

import (
	"github.com/kiranshivaraju/aigrader/internal/ai/openai"
	"github.com/kiranshivaraju/aigrader/internal/config"
)

// NewProvider returns an OpenRouter client. Referer and Title are sent as the
// attribution headers OpenRouter uses for app rankings.
func NewProvider(cfg config.OpenRouterConfig) *openai.Provider {
	return openai.New(openai.Options{
		Name:    "openrouter",
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Headers: map[string]string{
			"HTTP-Referer": cfg.Referer,
			"X-Title":      cfg.Title,
		},
	})
}
