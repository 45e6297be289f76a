package task

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// DefaultGradeTimeout bounds an inline grading request.
const DefaultGradeTimeout = 120 * time.Second

// ObjectivesGrader evaluates objectives in the calling goroutine.
type ObjectivesGrader interface {
	GradeObjectives(ctx context.Context, model, content string, objectives []string) (*models.ObjectivesEvaluation, error)
}

// WithGrader enables GradeObjectives. A non-positive timeout keeps DefaultGradeTimeout.
func WithGrader(g ObjectivesGrader, timeout time.Duration) Option {
	return func(s *Service) {
		s.grader = g
		if timeout > 0 {
			s.gradeTimeout = timeout
		}
	}
}

// GradeObjectives validates req like SubmitObjectives and grades it inline, without
// touching the ledger, the result store or the queue.
func (s *Service) GradeObjectives(ctx context.Context, req ObjectivesRequest) (*models.ObjectivesEvaluation, error) {
	if s.grader == nil {
		return nil, ErrGradingUnavailable
	}

	norm, err := normalizeObjectives(req, s.minContentLength)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.gradeTimeout)
	defer cancel()

	start := time.Now()
	eval, err := s.grader.GradeObjectives(ctx, norm.ModelName, norm.Content, norm.SpecificObjectives)
	if err != nil {
		return nil, fmt.Errorf("grading objectives: %w", err)
	}
	s.logger.Info("objectives graded inline", "model", norm.ModelName, "duration", time.Since(start))
	return eval, nil
}
