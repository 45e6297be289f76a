package vllm

import (
	"strings"

	"github.com/kiranshivaraju/aigrader/internal/ai/openai"
	"github.com/kiranshivaraju/aigrader/internal/config"
)

// NewProvider returns a client for a vLLM server's OpenAI-compatible API.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return openai.New(openai.Options{
		Name:    "vllm",
		BaseURL: base,
		Model:   cfg.Model,
	})
}
