package ollama

import (
	"context"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/aigrader/internal/ai/transport"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Provider implements models.AIProvider using the Ollama chat API.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: transport.NewClient()}
}

func (p *Provider) Name() string { return "ollama" }

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Format   string               `json:"format,omitempty"`
	Options  map[string]any       `json:"options,omitempty"`
}

type chatResponse struct {
	Message models.ChatMessage `json:"message"`
	Done    bool               `json:"done"`
}

func (p *Provider) Complete(ctx context.Context, req models.ChatRequest) (string, error) {
	body := chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if body.Model == "" {
		body.Model = p.cfg.Model
	}
	if req.JSON {
		body.Format = "json"
	}

	var resp chatResponse
	if err := transport.PostJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", transport.ErrEmptyReply
	}
	return resp.Message.Content, nil
}

var _ models.AIProvider = (*Provider)(nil)
