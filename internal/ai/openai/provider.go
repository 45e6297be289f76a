// Package openai talks to OpenAI-compatible chat completion endpoints.
// The vllm and openrouter providers reuse it with their own base URLs and headers.
package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/aigrader/internal/ai/transport"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Options configures a chat completions client.
type Options struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	// Headers are sent with every request. Empty values are skipped.
	Headers map[string]string
}

// Provider implements models.AIProvider over /chat/completions.
type Provider struct {
	opts   Options
	client *http.Client
}

// New builds a chat completions client from opts.
func New(opts Options) *Provider {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Name == "" {
		opts.Name = "openai"
	}
	return &Provider{opts: opts, client: transport.NewClient()}
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return New(Options{
		Name:    "openai",
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
}

func (p *Provider) Name() string { return p.opts.Name }

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string               `json:"model"`
	Messages       []models.ChatMessage `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      models.ChatMessage `json:"message"`
		FinishReason string             `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) Complete(ctx context.Context, req models.ChatRequest) (string, error) {
	body := completionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = p.opts.Model
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	headers := make(map[string]string, len(p.opts.Headers)+1)
	for k, v := range p.opts.Headers {
		headers[k] = v
	}
	if p.opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.opts.APIKey
	}

	var resp completionResponse
	if err := transport.PostJSON(ctx, p.client, p.opts.Name, p.opts.BaseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", transport.ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

var _ models.AIProvider = (*Provider)(nil)
