// Package mock provides models.AIProvider implementations for tests and for running
// the pipeline without a model server (AI_PROVIDER=mock).
package mock

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.ChatRequest) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.ChatRequest) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// NewMockProvider returns a MockProvider that answers grading and sentiment prompts
// with well-formed replies derived from the input.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, req models.ChatRequest) (string, error) {
			input := lastUserMessage(req)
			if strings.Contains(input, `"objetivo_general"`) {
				return objectivesReply(input), nil
			}
			return sentimentReply(input), nil
		},
	}
}

// NewStaticProvider returns a MockProvider that always answers reply.
func NewStaticProvider(reply string) *MockProvider {
	return &MockProvider{
		Name_: "mock-static",
		CompleteFunc: func(context.Context, models.ChatRequest) (string, error) {
			return reply, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(context.Context, models.ChatRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.ChatRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// NewSlowProvider wraps p so every call waits d first.
func NewSlowProvider(p models.AIProvider, d time.Duration) *MockProvider {
	return &MockProvider{
		Name_: "mock-slow",
		CompleteFunc: func(ctx context.Context, req models.ChatRequest) (string, error) {
			select {
			case <-time.After(d):
				return p.Complete(ctx, req)
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
}

func lastUserMessage(req models.ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == models.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

type objectivesInput struct {
	General  string   `json:"objetivo_general"`
	Specific []string `json:"objetivos_especificos"`
}

type evalItem struct {
	Objective         string   `json:"objetivo,omitempty"`
	Approved          string   `json:"aprobado"`
	Verbs             []string `json:"verbos,omitempty"`
	Detail            string   `json:"detalle"`
	Suggestions       string   `json:"sugerencias"`
	SuggestionOptions []string `json:"opciones_de_sugerencias"`
}

// objectivesReply approves every objective, wrapped in prose the way chat models
// often answer.
func objectivesReply(input string) string {
	var in objectivesInput
	if start := strings.Index(input, "{"); start >= 0 {
		_ = json.Unmarshal([]byte(input[start:]), &in)
	}

	specific := make([]evalItem, 0, len(in.Specific))
	for _, o := range in.Specific {
		specific = append(specific, evalItem{
			Objective:         o,
			Approved:          "SI",
			Detail:            "Correcto. Comienza con un verbo en infinitivo.",
			Suggestions:       "El objetivo está bien definido.",
			SuggestionOptions: []string{},
		})
	}

	reply := map[string]any{
		"evaluacion_conjunta": map[string]string{
			"alineacion_aprobada": "SI",
			"detalle_alineacion":  "Los objetivos específicos desglosan el objetivo general.",
			"sugerencia_global":   "",
		},
		"evaluacion_individual": map[string]any{
			"objetivo_general": evalItem{
				Approved:          "SI",
				Verbs:             []string{},
				Detail:            "Correctamente formulado.",
				Suggestions:       "El objetivo es claro y completo.",
				SuggestionOptions: []string{},
			},
			"objetivos_especificos": specific,
		},
	}
	data, _ := json.Marshal(reply)
	return "Aquí está la evaluación:\n" + string(data) + "\n"
}

func sentimentReply(input string) string {
	if strings.Contains(strings.ToLower(input), "mal") {
		return `{"sentimiento": "negativo", "confianza": 0.95}`
	}
	return `{"sentimiento": "positivo", "confianza": 0.98}`
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
