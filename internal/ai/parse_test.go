package ai_test

import (
	"testing"

	"github.com/kiranshivaraju/aigrader/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spanishReply = `Claro, esta es mi evaluación:
{
  "evaluacion_conjunta": {
    "alineacion_aprobada": "NO",
    "detalle_alineacion": "El específico 2 excede el alcance.",
    "sugerencia_global": "Enfocar los específicos en el análisis."
  },
  "evaluacion_individual": {
    "objetivo_general": {
      "aprobado": "SI",
      "verbos": [],
      "detalle": "Bien formulado.",
      "sugerencias": "Especificar el cómo.",
      "opciones_de_sugerencias": []
    },
    "objetivos_especificos": [
      {"objetivo": "Se describirán las políticas.", "aprobado": "NO", "detalle": "Falla B1.",
       "sugerencias": "Iniciar con infinitivo.", "opciones_de_sugerencias": ["Describir las políticas.", "Listar las políticas."]},
      {"objetivo": "Evaluar la satisfacción.", "aprobado": "Sí", "detalle": "Correcto.",
       "sugerencias": "", "opciones_de_sugerencias": null}
    ]
  }
}
Espero que sea útil.`

func TestExtractJSON(t *testing.T) {
	got, err := ai.ExtractJSON(`prefix {"a": {"b": 1}} suffix`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = ai.ExtractJSON("no json here")
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)

	_, err = ai.ExtractJSON("} backwards {")
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

func TestParseObjectivesReply(t *testing.T) {
	eval, err := ai.ParseObjectivesReply(spanishReply)
	require.NoError(t, err)

	assert.False(t, eval.JointEvaluation.AlignmentApproved)
	assert.Equal(t, "El específico 2 excede el alcance.", eval.JointEvaluation.AlignmentDetail)
	assert.True(t, eval.IndividualEvaluation.GeneralObjective.Approved)
	assert.Equal(t, []string{}, eval.IndividualEvaluation.GeneralObjective.Verbs)

	require.Len(t, eval.IndividualEvaluation.SpecificObjectives, 2)
	first := eval.IndividualEvaluation.SpecificObjectives[0]
	assert.False(t, first.Approved)
	assert.Len(t, first.SuggestionOptions, 2)

	second := eval.IndividualEvaluation.SpecificObjectives[1]
	assert.True(t, second.Approved, "accented SÍ counts as approval")
	assert.NotNil(t, second.SuggestionOptions)
}

func TestParseObjectivesReply_Invalid(t *testing.T) {
	tests := map[string]string{
		"no json":          "Lo siento, no puedo evaluar esto.",
		"broken json":      `{"evaluacion_conjunta": {`,
		"missing sections": `{"evaluacion_conjunta": {"alineacion_aprobada": "SI"}}`,
		"bad verdict":      `{"evaluacion_conjunta": {"alineacion_aprobada": 3}}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ai.ParseObjectivesReply(reply)
			assert.ErrorIs(t, err, ai.ErrInvalidResponse)
		})
	}
}

func TestParseSentimentReply(t *testing.T) {
	res, err := ai.ParseSentimentReply(`{"sentimiento": "Positivo", "confianza": 0.91}`)
	require.NoError(t, err)
	assert.Equal(t, "positivo", res.Sentiment)
	assert.InDelta(t, 0.91, res.Confidence, 1e-9)

	res, err = ai.ParseSentimentReply(`Respuesta: {"sentimiento": "negativo", "confianza": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Confidence, "confidence is clamped")

	_, err = ai.ParseSentimentReply(`{"sentimiento": "confuso", "confianza": 0.5}`)
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}
