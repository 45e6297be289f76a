package anthropic

import (
	"context"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/aigrader/internal/ai/transport"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: transport.NewClient()}
}

func (p *Provider) Name() string { return "anthropic" }

type messagesRequest struct {
	Model       string               `json:"model"`
	MaxTokens   int                  `json:"max_tokens"`
	System      string               `json:"system,omitempty"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Complete sends req to /v1/messages. System messages are moved to the top-level
// system field, which is where the Messages API expects them.
func (p *Provider) Complete(ctx context.Context, req models.ChatRequest) (string, error) {
	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   defaultMaxTokens,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = p.cfg.Model
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, m)
	}
	body.System = strings.Join(system, "\n\n")

	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := transport.PostJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", transport.ErrEmptyReply
	}
	return sb.String(), nil
}

var _ models.AIProvider = (*Provider)(nil)
