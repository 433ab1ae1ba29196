package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/sweetpotato0/studygen/content"
)

// Template names registered by Default.
const (
	Theoretical = "expert-teorico"
	Practical   = "expert-practical"
	Technical   = "expert-tecnico"
	Synthesis   = "strategist"
	Repair      = "strategist-repair"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"percent": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f*100)
	},
}

// ExpertData feeds the three expert templates.
type ExpertData struct {
	Title              string
	Filename           string
	Group              string
	TargetWords        int
	EvidenceCount      int
	Evidence           string
	CriticalLaws       []content.CriticalLaw
	PracticeExamples   []string
	CommonCalculations []string
}

// Draft is one expert draft embedded verbatim in the synthesis prompt.
type Draft struct {
	Label   string
	Words   int
	Content string
}

// SynthesisData feeds the strategist and repair templates.
type SynthesisData struct {
	Title              string
	TimeMinutes        int
	Strategy           string
	TargetWords        int
	TargetSections     int
	MinSourcedSections int
	MinCitations       int // zero unless the topic is a statute
	Readiness          float64
	DraftWords         int
	Drafts             []Draft
	Summary            content.CurationSummary
	Critical           []string
	Droppable          []string

	Violations []string
	Previous   string
}

const citationRules = `REGLAS OBLIGATORIAS
1) NO INVENTES: si un artículo o dato numérico no aparece en la evidencia, no lo afirmes como cierto.
2) CITA SIEMPRE: toda afirmación jurídica relevante termina con una cita del tipo (Art. N Ley 9/1991) o (Norma 6.1-IC).
3) TRANSCRIPCIÓN LITERAL: incluye al menos un extracto literal entre comillas por sección cuando exista en la evidencia.
4) FORMATO DE APUNTES: estructura h2/h3, listas, tablas y pasos numerados; evita la prosa larga.
`

const theoreticalTemplate = `Eres un EXPERTO LEGAL especializado en normativa de obras públicas.

TEMA: "{{.Title}}"
DOCUMENTO BASE: "{{.Filename}}"
TARGET: {{.TargetWords}} palabras

EVIDENCIA LEGAL ({{.EvidenceCount}} fragmentos de CORE):
{{.Evidence}}
{{if .CriticalLaws}}
LEYES CRÍTICAS IDENTIFICADAS:
{{range .CriticalLaws}}- {{.Law}}: {{join .Articles ", "}}
{{end}}{{end}}
TU TAREA
Genera la sección "Marco Legal y Normativo" (~{{.TargetWords}} palabras) cubriendo:
1. Objeto y ámbito de la norma.
2. Artículos clave con transcripción literal y cita exacta ("Art. 3 de la Ley 9/1991 establece que...").
3. Competencias y órganos responsables.
4. Referencias cruzadas a otras leyes y normativa de desarrollo.

` + citationRules + `
RESPONDE JSON:
{
  "content": "Markdown de {{.TargetWords}} palabras",
  "references": ["Ley 9/1991 Art. 3", "Art. 5"],
  "definitions": [{"term": "Dominio público", "definition": "..."}],
  "sources": {"chunks": [{"chunkId": "db-123", "article": "Art. 3", "originalText": "literal", "confidence": 0.9}]},
  "confidence": 0.9,
  "gaps": ["conceptos que no encontraste en la evidencia"]
}
`

const practicalTemplate = `Eres un EXPERTO EN RESOLUCIÓN DE SUPUESTOS PRÁCTICOS de oposición.

TEMA: "{{.Title}}"
GRUPO: "{{.Group}}"
TARGET: {{.TargetWords}} palabras

SUPUESTOS REALES RELACIONADOS ({{.EvidenceCount}} fragmentos):
{{.Evidence}}
{{if .PracticeExamples}}
SUPUESTOS ESPECÍFICOS DONDE APARECE ESTE TEMA:
{{join .PracticeExamples ", "}}
{{end}}{{if .CommonCalculations}}
CÁLCULOS COMUNES EN SUPUESTOS:
{{join .CommonCalculations "\n"}}
{{end}}
TU TAREA
Genera una GUÍA PRÁCTICA DE RESOLUCIÓN (~{{.TargetWords}} palabras) con:
1. Estructura de solución en 4-5 pasos concretos.
2. Fórmulas clave con referencia normativa y un ejemplo numérico.
3. Normativa aplicable citada en las soluciones.
4. Errores comunes a evitar.
5. Un ejemplo resuelto condensado.

Cita supuestos reales ("En Supuesto 3 se pregunta...") y usa Markdown con subsecciones h3.

RESPONDE EXCLUSIVAMENTE JSON:
{
  "content": "Guía práctica completa en Markdown",
  "resolutionSteps": ["Paso 1: ...", "Paso 2: ..."],
  "keyFormulas": [{"name": "Zona de protección", "formula": "distancia según tipo", "reference": "Art. 7 Ley 9/1991", "appearsIn": ["Supuesto 1"], "example": "Carretera estatal: 50 m"}],
  "commonMistakes": ["..."],
  "practicalTips": ["..."],
  "supuestos": ["Supuesto 1", "Supuesto 11"],
  "confidence": 0.9
}
`

const technicalTemplate = citationRules + `
Eres un EXPERTO TÉCNICO en ingeniería de obras públicas.

TEMA: "{{.Title}}"
TARGET: {{.TargetWords}} palabras

EVIDENCIA TÉCNICA ({{.EvidenceCount}} fragmentos CORE+SUPPLEMENTARY):
{{.Evidence}}
{{if .CommonCalculations}}
CÁLCULOS COMUNES IDENTIFICADOS:
{{join .CommonCalculations "\n"}}
{{end}}
TU TAREA
Genera la sección "Conceptos Técnicos y Cálculos" (~{{.TargetWords}} palabras) con:
1. Definiciones técnicas precisas con referencia normativa.
2. Fórmulas con nombre, parámetros, unidades y un ejemplo numérico.
3. Criterios técnicos: valores límite, umbrales y condiciones de aplicación.
4. Características, métodos de ensayo y criterios de aceptación si aplican.

RESPONDE JSON:
{
  "content": "Markdown técnico de {{.TargetWords}} palabras",
  "definitions": [{"term": "Término", "definition": "..."}],
  "formulas": [{"name": "Espesor de firme", "formula": "e = f(CBR)", "reference": "Norma 6.1-IC", "parameters": ["CBR"]}],
  "confidence": 0.9
}
`

const synthesisTemplate = `Eres el ESTRATEGA SINTETIZADOR del temario. NO reescribas desde cero: sintetiza y mejora la densidad.

CONTEXTO ESTRATÉGICO:
- Tema: "{{.Title}}"
- Tiempo asignado: {{.TimeMinutes}} minutos
- Estrategia: {{.Strategy}}
- Practice readiness actual: {{percent .Readiness}}

DRAFTS DE EXPERTOS ({{.DraftWords}} palabras):
{{range .Drafts}}
### {{.Label}} ({{.Words}} palabras):
{{.Content}}
{{end}}
REPORTE DE CURACIÓN:
- Conceptos totales: {{.Summary.Total}}
- Críticos (KEEP_FULL): {{.Summary.Critical}}
- Importantes (KEEP_SUMMARY): {{.Summary.Important}}
- Prescindibles (DROP): {{.Summary.Droppable}}

CONCEPTOS CRÍTICOS (incluir completos):
{{if .Critical}}{{join .Critical "\n"}}{{else}}(Ninguno identificado){{end}}

CONCEPTOS PRESCINDIBLES (eliminar):
{{if .Droppable}}{{join .Droppable "\n"}}{{else}}(Ninguno identificado){{end}}

OBJETIVOS ESTRUCTURALES (se validan automáticamente):
- Al menos {{.TargetSections}} secciones h2.
- Al menos {{.TargetWords}} palabras en total; ninguna sección por debajo de 120 palabras.
- Al menos {{.MinSourcedSections}} secciones con sourceMetadata.chunks copiados de la evidencia de los drafts.
{{- if .MinCitations}}
- Al menos {{.MinCitations}} citas de artículos en el texto ("Art. N").
{{- end}}

WIDGETS: elige 5-6 entre formula, infografia, mnemonic_generator, case_practice, quiz, diagram, timeline.
Incluye "contextFrame" (párrafo donde aplica) y "conceptTopic".

RESPONDE JSON:
{
  "sections": [
    {
      "id": "marco-normativo",
      "title": "Marco Normativo Aplicable",
      "level": "h2",
      "sourceType": "library",
      "content": {"text": "markdown", "widgets": []},
      "sourceMetadata": {"primaryDocument": "PDF.pdf", "articles": ["Art. 3"], "chunks": [{"chunkId": "db-123", "article": "Art. 3", "originalText": "literal", "confidence": 0.9}]},
      "practicalUse": "Se cita en Supuestos X, Y",
      "sourceExpert": "teorico"
    }
  ],
  "widgets": [{"type": "formula", "title": "...", "contextFrame": "...", "conceptTopic": "...", "content": {"latex": "...", "variables": []}}],
  "synthesis": {"originalWords": {{.DraftWords}}, "finalWords": 0, "conceptsIncluded": 0, "conceptsDropped": 0, "practiceReadiness": 0.0},
  "practiceMetrics": {"appearsInSupuestos": [], "formulasIncluded": 0, "examplesProvided": 0, "resolutionGuidance": true}
}
`

const repairTemplate = `

REPARACIÓN OBLIGATORIA
Tu respuesta anterior no superó estas comprobaciones:
{{range .Violations}}- {{.}}
{{end}}
Corrige SOLO lo necesario para cumplirlas, conservando las secciones válidas. No regeneres desde cero.
{{if .Previous}}
RESPUESTA ANTERIOR:
{{.Previous}}
{{end}}`

// Default returns a manager with every pipeline template registered.
func Default() *Manager {
	m := NewManager()
	for name, body := range map[string]string{
		Theoretical: theoreticalTemplate,
		Practical:   practicalTemplate,
		Technical:   technicalTemplate,
		Synthesis:   synthesisTemplate,
		Repair:      repairTemplate,
	} {
		if err := m.RegisterString(name, body); err != nil {
			panic(fmt.Sprintf("prompt: %s: %v", name, err))
		}
	}
	return m
}
