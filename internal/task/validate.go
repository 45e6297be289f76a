package task

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/aigrader/pkg/textnorm"
)

// Bounds on the number of specific objectives accepted with a general objective.
const (
	MinSpecificObjectives = 3
	MaxSpecificObjectives = 4
)

// DefaultMinContentLength is the minimum length of cleaned content, in characters.
const DefaultMinContentLength = 10

// ObjectivesRequest is the body of an objectives submission.
type ObjectivesRequest struct {
	ModelName          string   `json:"model_name"`
	Content            string   `json:"content"`
	SpecificObjectives []string `json:"specific_objectives"`
}

// SentimentRequest is the body of a sentiment submission. ModelName is optional;
// workers fall back to the configured sentiment model.
type SentimentRequest struct {
	ModelName string `json:"model_name,omitempty"`
	Content   string `json:"content"`
}

// normalizeObjectives validates req and returns it with cleaned text.
func normalizeObjectives(req ObjectivesRequest, minLen int) (ObjectivesRequest, error) {
	model := strings.TrimSpace(req.ModelName)
	if model == "" {
		return req, unprocessable("model_name", "model_name is required")
	}

	content, err := normalizeContent(req.Content, minLen)
	if err != nil {
		return req, err
	}

	n := len(req.SpecificObjectives)
	if n < MinSpecificObjectives || n > MaxSpecificObjectives {
		return req, badRequest("specific_objectives",
			fmt.Sprintf("expected between %d and %d specific objectives, got %d",
				MinSpecificObjectives, MaxSpecificObjectives, n))
	}

	objectives := make([]string, n)
	for i, o := range req.SpecificObjectives {
		objectives[i] = textnorm.CollapseSpace(o)
		if objectives[i] == "" {
			return req, badRequest("specific_objectives", fmt.Sprintf("specific objective %d is empty", i+1))
		}
	}

	return ObjectivesRequest{
		ModelName:          model,
		Content:            content,
		SpecificObjectives: objectives,
	}, nil
}

func normalizeSentiment(req SentimentRequest, minLen int) (SentimentRequest, error) {
	content, err := normalizeContent(req.Content, minLen)
	if err != nil {
		return req, err
	}
	return SentimentRequest{
		ModelName: strings.TrimSpace(req.ModelName),
		Content:   content,
	}, nil
}

func normalizeContent(raw string, minLen int) (string, error) {
	content := textnorm.Clean(raw)
	if content == "" {
		return "", unprocessable("content", "content is empty after cleaning")
	}
	if textnorm.Length(content) < minLen {
		return "", unprocessable("content",
			fmt.Sprintf("content must be at least %d characters after cleaning", minLen))
	}
	return content, nil
}
