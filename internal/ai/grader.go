package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/aigrader/internal/ai/transport"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Grader turns grading requests into provider chats and parses the replies.
type Grader struct {
	provider       models.AIProvider
	aliases        map[string]string
	sentimentModel string
	logger         *slog.Logger
}

type GraderOption func(*Grader)

// WithModelAliases restricts model names to the keys of aliases and maps each
// to the provider's model identifier.
func WithModelAliases(aliases map[string]string) GraderOption {
	return func(g *Grader) { g.aliases = aliases }
}

// WithSentimentModel sets the model used when a sentiment task names none.
func WithSentimentModel(model string) GraderOption {
	return func(g *Grader) { g.sentimentModel = model }
}

func WithGraderLogger(logger *slog.Logger) GraderOption {
	return func(g *Grader) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGrader(provider models.AIProvider, opts ...GraderOption) *Grader {
	g := &Grader{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ResolveModel maps a public model name to the provider's identifier. Without
// aliases names pass through; an empty name selects the provider default.
func (g *Grader) ResolveModel(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(g.aliases) == 0 {
		return name, nil
	}
	if id, ok := g.aliases[name]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w %q, available: %s", ErrUnknownModel, name, strings.Join(g.Models(), ", "))
}

// ProviderName names the backing provider.
func (g *Grader) ProviderName() string {
	return g.provider.Name()
}

// Models returns the accepted model aliases, sorted.
func (g *Grader) Models() []string {
	names := make([]string, 0, len(g.aliases))
	for k := range g.aliases {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GradeObjectives evaluates a general objective (content) against its specific objectives.
func (g *Grader) GradeObjectives(ctx context.Context, model, content string, objectives []string) (*models.ObjectivesEvaluation, error) {
	id, err := g.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	msgs, err := objectivesMessages(content, objectives)
	if err != nil {
		return nil, err
	}
	reply, err := g.complete(ctx, id, msgs)
	if err != nil {
		return nil, err
	}
	return ParseObjectivesReply(reply)
}

// AnalyzeSentiment classifies text as positive or negative.
func (g *Grader) AnalyzeSentiment(ctx context.Context, model, text string) (*models.SentimentResult, error) {
	if strings.TrimSpace(model) == "" {
		model = g.sentimentModel
	}
	// No model at all selects the provider default.
	var id string
	if strings.TrimSpace(model) != "" {
		var err error
		if id, err = g.ResolveModel(model); err != nil {
			return nil, err
		}
	}
	msgs, err := sentimentMessages(text)
	if err != nil {
		return nil, err
	}
	reply, err := g.complete(ctx, id, msgs)
	if err != nil {
		return nil, err
	}
	return ParseSentimentReply(reply)
}

func (g *Grader) complete(ctx context.Context, model string, msgs []models.ChatMessage) (string, error) {
	start := time.Now()
	reply, err := g.provider.Complete(ctx, models.ChatRequest{
		Model:    model,
		Messages: msgs,
		JSON:     true,
	})
	if err != nil {
		return "", classify(err)
	}
	g.logger.Debug("inference completed",
		"provider", g.provider.Name(), "model", model, "duration", time.Since(start), "reply_len", len(reply))
	return reply, nil
}

// classify wraps provider errors with the package sentinels.
func classify(err error) error {
	var statusErr *transport.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, transport.ErrEmptyReply):
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	case errors.As(err, &statusErr):
		if statusErr.Retryable() {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}
