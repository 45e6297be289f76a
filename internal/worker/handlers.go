package worker

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/aigrader/internal/queue"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Handler runs one task. It must honour ctx cancellation.
type Handler func(ctx context.Context, msg queue.TaskMessage) Outcome

// Grader is the inference boundary the built-in handlers call.
type Grader interface {
	GradeObjectives(ctx context.Context, model, content string, objectives []string) (*models.ObjectivesEvaluation, error)
	AnalyzeSentiment(ctx context.Context, model, content string) (*models.SentimentResult, error)
}

// Handlers returns the handler for every task kind, backed by g.
func Handlers(g Grader) map[string]Handler {
	return map[string]Handler{
		models.TaskKindObjectives: ObjectivesHandler(g),
		models.TaskKindSentiment:  SentimentHandler(g),
	}
}

func ObjectivesHandler(g Grader) Handler {
	return func(ctx context.Context, msg queue.TaskMessage) Outcome {
		if len(msg.SpecificObjectives) == 0 {
			return Failed(errors.New("objectives task without specific objectives"))
		}
		eval, err := g.GradeObjectives(ctx, msg.ModelName, msg.Content, msg.SpecificObjectives)
		if err != nil {
			return Failed(err)
		}
		return Succeeded(eval)
	}
}

func SentimentHandler(g Grader) Handler {
	return func(ctx context.Context, msg queue.TaskMessage) Outcome {
		res, err := g.AnalyzeSentiment(ctx, msg.ModelName, msg.Content)
		if err != nil {
			return Failed(err)
		}
		return Succeeded(res)
	}
}
