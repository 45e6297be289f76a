package models

import (
	"errors"
	"fmt"
	"strings"
)

// ObjectivesEvaluation is the result payload of an objectives task.
type ObjectivesEvaluation struct {
	JointEvaluation      JointEvaluation      `json:"joint_evaluation"`
	IndividualEvaluation IndividualEvaluation `json:"individual_evaluation"`
}

// JointEvaluation grades how well the specific objectives break down the general one.
type JointEvaluation struct {
	AlignmentApproved bool   `json:"alignment_approved"`
	AlignmentDetail   string `json:"alignment_detail"`
	GlobalSuggestion  string `json:"global_suggestion"`
}

// IndividualEvaluation grades each objective on its own.
type IndividualEvaluation struct {
	GeneralObjective   GeneralObjectiveEvaluation    `json:"general_objective"`
	SpecificObjectives []SpecificObjectiveEvaluation `json:"specific_objectives"`
}

type GeneralObjectiveEvaluation struct {
	Approved          bool     `json:"approved"`
	Verbs             []string `json:"verbs"`
	Detail            string   `json:"detail"`
	Suggestions       string   `json:"suggestions"`
	SuggestionOptions []string `json:"suggestion_options"`
}

type SpecificObjectiveEvaluation struct {
	Objective         string   `json:"objective"`
	Approved          bool     `json:"approved"`
	Detail            string   `json:"detail"`
	Suggestions       string   `json:"suggestions"`
	SuggestionOptions []string `json:"suggestion_options"`
}

// Validate checks the fields a grading payload cannot be without.
func (e ObjectivesEvaluation) Validate() error {
	if strings.TrimSpace(e.JointEvaluation.AlignmentDetail) == "" {
		return errors.New("joint_evaluation.alignment_detail is required")
	}
	if strings.TrimSpace(e.IndividualEvaluation.GeneralObjective.Detail) == "" {
		return errors.New("individual_evaluation.general_objective.detail is required")
	}
	if len(e.IndividualEvaluation.SpecificObjectives) == 0 {
		return errors.New("individual_evaluation.specific_objectives must not be empty")
	}
	for i, so := range e.IndividualEvaluation.SpecificObjectives {
		if strings.TrimSpace(so.Objective) == "" {
			return fmt.Errorf("individual_evaluation.specific_objectives[%d].objective is required", i)
		}
	}
	return nil
}

// SentimentResult is the result payload of a sentiment task.
type SentimentResult struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

func (s SentimentResult) Validate() error {
	if strings.TrimSpace(s.Sentiment) == "" {
		return errors.New("sentiment is required")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1], got %v", s.Confidence)
	}
	return nil
}
