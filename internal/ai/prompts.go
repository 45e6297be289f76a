package ai

import (
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

const objectivesSystemPrompt = `### ROL Y OBJETIVO ###
Eres un evaluador experto en metodología de la investigación, especializado en la formulación de objetivos para tesis de pregrado. Analiza un objetivo general y sus objetivos específicos, decide si cada uno está bien formulado y si el conjunto es coherente, y responde solo con un objeto JSON.

### ENTRADA ###
Un objeto JSON con "objetivo_general" (texto) y "objetivos_especificos" (lista de textos).

### TAXONOMÍA DE BLOOM ###
- CONOCIMIENTO: definir, listar, nombrar, identificar.
- COMPRENSIÓN: interpretar, resumir, clasificar, explicar, describir.
- APLICACIÓN: aplicar, usar, implementar, demostrar.
- ANÁLISIS: analizar, comparar, categorizar, diagnosticar, diferenciar.
- SÍNTESIS: crear, diseñar, planificar, proponer, formular.
- EVALUACIÓN: evaluar, juzgar, criticar, valorar, justificar.

### CRITERIOS ###
A1. Los objetivos específicos son los pasos necesarios para alcanzar el objetivo general.
A2. Sus verbos son de un nivel cognitivo igual o inferior al del objetivo general.
B1. Cada objetivo comienza con un único verbo en infinitivo (-ar, -er, -ir). Si no, se reprueba sin evaluar nada más.
B2. Los demás verbos de la oración no están en infinitivo.
B3. Cada objetivo dice qué se hará, cómo y para qué.

### FORMATO DE SALIDA ###
{
  "evaluacion_conjunta": {
    "alineacion_aprobada": "SI" | "NO",
    "detalle_alineacion": "...",
    "sugerencia_global": "..."
  },
  "evaluacion_individual": {
    "objetivo_general": {
      "aprobado": "SI" | "NO",
      "verbos": ["verbos mal utilizados, o vacío"],
      "detalle": "...",
      "sugerencias": "...",
      "opciones_de_sugerencias": ["dos reescrituras si aprobado es NO, o vacío"]
    },
    "objetivos_especificos": [
      {
        "objetivo": "texto evaluado",
        "aprobado": "SI" | "NO",
        "detalle": "...",
        "sugerencias": "...",
        "opciones_de_sugerencias": []
      }
    ]
  }
}
No incluyas texto fuera del JSON.`

const sentimentSystemPrompt = `Clasifica el sentimiento del texto que recibirás como "positivo" o "negativo".
Responde solo con un objeto JSON de la forma {"sentimiento": "positivo" | "negativo", "confianza": número entre 0 y 1}.`

// objectivesMessages builds the chat for grading general and specific objectives.
// The input is JSON-encoded so quotes in user text cannot break the prompt.
func objectivesMessages(general string, specific []string) ([]models.ChatMessage, error) {
	input, err := json.Marshal(struct {
		General  string   `json:"objetivo_general"`
		Specific []string `json:"objetivos_especificos"`
	}{general, specific})
	if err != nil {
		return nil, fmt.Errorf("encoding objectives: %w", err)
	}
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: objectivesSystemPrompt},
		{Role: models.RoleUser, Content: "### OBJETIVOS A EVALUAR ###\n" + string(input)},
	}, nil
}

func sentimentMessages(text string) ([]models.ChatMessage, error) {
	input, err := json.Marshal(struct {
		Text string `json:"texto"`
	}{text})
	if err != nil {
		return nil, fmt.Errorf("encoding text: %w", err)
	}
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: sentimentSystemPrompt},
		{Role: models.RoleUser, Content: string(input)},
	}, nil
}
