package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// ExtractJSON returns the text between the first "{" and the last "}" of a model reply.
func ExtractJSON(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}
	return reply[start : end+1], nil
}

// verdict is a SI/NO answer. Models sometimes answer with booleans or accents.
type verdict bool

func (v *verdict) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = verdict(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("verdict must be \"SI\" or \"NO\": %w", err)
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SI", "SÍ", "YES", "TRUE":
		*v = true
	default:
		*v = false
	}
	return nil
}

type rawObjectiveEval struct {
	Objective         string   `json:"objetivo"`
	Approved          verdict  `json:"aprobado"`
	Verbs             []string `json:"verbos"`
	Detail            string   `json:"detalle"`
	Suggestions       string   `json:"sugerencias"`
	SuggestionOptions []string `json:"opciones_de_sugerencias"`
}

type rawObjectivesReply struct {
	Joint struct {
		AlignmentApproved verdict `json:"alineacion_aprobada"`
		AlignmentDetail   string  `json:"detalle_alineacion"`
		GlobalSuggestion  string  `json:"sugerencia_global"`
	} `json:"evaluacion_conjunta"`
	Individual struct {
		General  rawObjectiveEval   `json:"objetivo_general"`
		Specific []rawObjectiveEval `json:"objetivos_especificos"`
	} `json:"evaluacion_individual"`
}

// ParseObjectivesReply maps a grading reply to an ObjectivesEvaluation.
func ParseObjectivesReply(reply string) (*models.ObjectivesEvaluation, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var r rawObjectivesReply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	eval := &models.ObjectivesEvaluation{
		JointEvaluation: models.JointEvaluation{
			AlignmentApproved: bool(r.Joint.AlignmentApproved),
			AlignmentDetail:   r.Joint.AlignmentDetail,
			GlobalSuggestion:  r.Joint.GlobalSuggestion,
		},
		IndividualEvaluation: models.IndividualEvaluation{
			GeneralObjective: models.GeneralObjectiveEvaluation{
				Approved:          bool(r.Individual.General.Approved),
				Verbs:             nonNil(r.Individual.General.Verbs),
				Detail:            r.Individual.General.Detail,
				Suggestions:       r.Individual.General.Suggestions,
				SuggestionOptions: nonNil(r.Individual.General.SuggestionOptions),
			},
			SpecificObjectives: make([]models.SpecificObjectiveEvaluation, 0, len(r.Individual.Specific)),
		},
	}
	for _, so := range r.Individual.Specific {
		eval.IndividualEvaluation.SpecificObjectives = append(eval.IndividualEvaluation.SpecificObjectives,
			models.SpecificObjectiveEvaluation{
				Objective:         so.Objective,
				Approved:          bool(so.Approved),
				Detail:            so.Detail,
				Suggestions:       so.Suggestions,
				SuggestionOptions: nonNil(so.SuggestionOptions),
			})
	}

	if err := eval.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return eval, nil
}

// ParseSentimentReply maps a sentiment reply to a SentimentResult. Confidence is
// clamped to [0, 1].
func ParseSentimentReply(reply string) (*models.SentimentResult, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var r struct {
		Sentiment  string  `json:"sentimiento"`
		Confidence float64 `json:"confianza"`
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	sentiment := strings.ToLower(strings.TrimSpace(r.Sentiment))
	if sentiment != "positivo" && sentiment != "negativo" {
		return nil, fmt.Errorf("%w: unexpected sentiment %q", ErrInvalidResponse, r.Sentiment)
	}

	conf := r.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return &models.SentimentResult{Sentiment: sentiment, Confidence: conf}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
