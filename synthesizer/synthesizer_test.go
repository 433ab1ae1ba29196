package synthesizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/logging"
)

// script replies with one canned response per call.
type script struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
	roles   []string
}

func (s *script) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.roles = append(s.roles, llm.RoleFrom(ctx))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *script) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type spec struct {
	words, cites int
	sourced      bool
}

func synthesisJSON(t *testing.T, sections []spec, extra map[string]any) string {
	t.Helper()
	var out []map[string]any
	for i, s := range sections {
		sec := map[string]any{
			"id":      fmt.Sprintf("s%d", i+1),
			"title":   fmt.Sprintf("Sección %d", i+1),
			"level":   "h2",
			"content": map[string]any{"text": textWith(s.words, s.cites), "widgets": []any{}},
		}
		if s.sourced {
			sec["sourceMetadata"] = map[string]any{
				"primaryDocument": "Ley 9-1991.pdf",
				"chunks":          []any{map[string]any{"chunkId": "db-1", "originalText": "literal", "confidence": 0.9}},
			}
		}
		out = append(out, sec)
	}
	body := map[string]any{"sections": out}
	for k, v := range extra {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return "```json\n" + string(raw) + "\n```"
}

func input() Input {
	report := &content.CurationReport{
		Concepts: []content.Concept{
			{ID: "art-7", Text: "Art. 7", Recommendation: content.KeepFull,
				Criticality: content.Criticality{Score: 0.9, AppearsInSupuestos: []string{"Supuesto 1", "Supuesto 11"}}},
			{ID: "explanada", Text: "Explanada", Recommendation: content.Drop,
				Criticality: content.Criticality{Score: 0.15}},
		},
		Summary:           content.CurationSummary{Total: 12, Critical: 6, Important: 4, Droppable: 2},
		PracticeReadiness: 0.82,
	}
	return Input{
		Topic: content.Topic{ID: "t1", Title: "Ley de Carreteras", Filename: "Ley 9-1991.pdf"},
		Plan: content.StrategicPlan{
			TargetWords: 1800, TargetSections: 7, Complexity: content.ComplexityHigh,
			StatuteHeavy: true, TimeAllocationMinutes: 90, Strategy: "detailed",
		},
		Drafts: []content.ExpertOutput{
			{Content: words(700), Metadata: content.ExpertMetadata{Source: content.RoleTheoretical}},
			{Content: words(500), Metadata: content.ExpertMetadata{Source: content.RolePractical}},
			{Content: words(400), Metadata: content.ExpertMetadata{Source: content.RoleTechnical}},
		},
		Report: report,
	}
}

func newSynth(c llm.Completer) *Synthesizer {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return New(c, WithLogger(logging.Discard()), WithClock(func() time.Time { return fixed }))
}

func TestSynthesizeRepairsOnce(t *testing.T) {
	first := make([]spec, 6)
	for i := range first {
		first[i] = spec{words: 250, cites: 2, sourced: i < 4}
	}
	second := make([]spec, 7)
	for i := range second {
		second[i] = spec{words: 230, cites: 2, sourced: i < 4}
	}
	second[6] = spec{words: 240, cites: 1}
	c := &script{replies: []string{synthesisJSON(t, first, nil), synthesisJSON(t, second, nil)}}

	doc, err := newSynth(c).Synthesize(context.Background(), input())
	require.NoError(t, err)
	require.Equal(t, 2, c.calls())
	require.Equal(t, content.QualityOK, doc.QualityStatus)
	require.Equal(t, 2, doc.Metadata.Synthesis.Attempts)
	require.Equal(t, 1620, doc.Metadata.Health.TotalWords)
	require.Equal(t, 7, doc.Metadata.Health.TotalSections)

	repair := c.prompts[1]
	require.True(t, strings.HasPrefix(repair, c.prompts[0]), "repair prompt should extend the original")
	require.Contains(t, repair, "REPARACIÓN OBLIGATORIA")
	require.Contains(t, repair, "se requieren al menos 7 secciones")
	require.Contains(t, repair, "se requieren al menos 1530")
	require.Contains(t, repair, `"id":"s6"`)
	for _, role := range c.roles {
		require.Equal(t, string(content.RoleStrategist), role)
	}
}

func TestSynthesizePromptCarriesDraftsAndConcepts(t *testing.T) {
	passing := make([]spec, 7)
	for i := range passing {
		passing[i] = spec{words: 260, cites: 2, sourced: true}
	}
	c := &script{replies: []string{synthesisJSON(t, passing, nil)}}

	_, err := newSynth(c).Synthesize(context.Background(), input())
	require.NoError(t, err)
	require.Equal(t, 1, c.calls())

	p := c.prompts[0]
	require.Contains(t, p, "DRAFTS DE EXPERTOS (1600 palabras)")
	require.Contains(t, p, "### DRAFT TEÓRICO (700 palabras)")
	require.Contains(t, p, "- [art-7] Art. 7... (score: 0.90, supuestos: Supuesto 1, Supuesto 11)")
	require.Contains(t, p, "- Explanada... (score: 0.15) → ELIMINAR")
	require.Contains(t, p, "Al menos 10 citas de artículos")
	require.Contains(t, p, "Practice readiness actual: 82%")
	require.Less(t, strings.Index(p, "DRAFT TEÓRICO"), strings.Index(p, "DRAFT PRÁCTICO"))
}

func TestSynthesizeAcceptsBestAfterBudget(t *testing.T) {
	weak := []spec{{words: 100, sourced: true}, {words: 100}}
	weaker := []spec{{words: 10}, {words: 10}, {words: 10}}
	c := &script{replies: []string{synthesisJSON(t, weak, nil), synthesisJSON(t, weaker, nil)}}

	doc, err := newSynth(c).Synthesize(context.Background(), input())
	require.NoError(t, err)
	require.Equal(t, MaxAttempts, c.calls())
	require.Equal(t, content.QualityNeedsImprovement, doc.QualityStatus)
	require.Equal(t, 1, doc.Metadata.Synthesis.Attempts)
	require.Len(t, doc.Sections, 2)
	require.NotEmpty(t, doc.Warnings)
	require.Contains(t, doc.Warnings[0], "Control de calidad")
}

func TestSynthesizeRetriesUnparseableResponse(t *testing.T) {
	passing := make([]spec, 7)
	for i := range passing {
		passing[i] = spec{words: 260, cites: 2, sourced: true}
	}
	c := &script{replies: []string{"no puedo generar eso", synthesisJSON(t, passing, nil)}}

	doc, err := newSynth(c).Synthesize(context.Background(), input())
	require.NoError(t, err)
	require.Equal(t, content.QualityOK, doc.QualityStatus)
	require.Contains(t, c.prompts[1], "no era un objeto JSON")
}

func TestSynthesizeFailsWithoutParseableResponse(t *testing.T) {
	c := &script{replies: []string{"{}", "nada"}}
	_, err := newSynth(c).Synthesize(context.Background(), input())
	require.ErrorIs(t, err, serrors.ErrEmptyCompletion)
	require.Equal(t, MaxAttempts, c.calls())
}

func TestSynthesizeCompletionErrorIsFatal(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := &script{err: boom}
	_, err := newSynth(c).Synthesize(context.Background(), input())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, c.calls())
}

func TestSynthesizeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &script{}
	_, err := newSynth(c).Synthesize(ctx, input())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, c.calls())
}

func TestSynthesizeRequiresReport(t *testing.T) {
	in := input()
	in.Report = nil
	_, err := newSynth(&script{}).Synthesize(context.Background(), in)
	require.ErrorIs(t, err, serrors.ErrInvalidInput)
}

func TestSynthesizeNormalizesAndComputesHealth(t *testing.T) {
	raw := `{
	  "sections": [
	    {"title": "Marco\u0007 normativo", "content": {"text": "uno  dos¶ tres", "widgets": [{"type": "quiz", "title": "Test"}, {"type": "hologram"}]},
	     "children": [{"title": "Detalle", "content": "cuatro cinco"}, {"title": "Vacía", "content": {"text": "  "}}]},
	    {"id": "marco-normativo", "title": "Otra", "level": "h1", "sourceType": "library", "content": {"text": "seis"}},
	    {"title": "Sin texto", "content": {"text": ""}}
	  ],
	  "widgets": [{"type": "FORMULA", "title": "Zona"}, {"type": "video"}],
	  "synthesis": {"finalWords": 9999, "practiceReadiness": 0.97},
	  "practiceMetrics": {"formulasIncluded": 2, "resolutionGuidance": true}
	}`
	c := &script{replies: []string{raw, raw}}
	in := input()
	in.Plan.TargetWords = 6
	in.Plan.TargetSections = 2
	in.Plan.StatuteHeavy = false

	doc, err := newSynth(c).Synthesize(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, doc.Sections, 2)
	first := doc.Sections[0]
	require.Equal(t, "marco-normativo", first.ID)
	require.Equal(t, "Marco normativo", first.Title)
	require.Equal(t, content.LevelH2, first.Level)
	require.Equal(t, content.SourceMixed, first.SourceType)
	require.Equal(t, "uno dos tres", first.Content.Text)
	require.Len(t, first.Content.Widgets, 1)
	require.Equal(t, content.WidgetQuiz, first.Content.Widgets[0].Type)
	require.Len(t, first.Children, 1)
	require.Equal(t, content.LevelH3, first.Children[0].Level)
	require.Equal(t, "cuatro cinco", first.Children[0].Content.Text)

	second := doc.Sections[1]
	require.Equal(t, "marco-normativo-2", second.ID)
	require.Equal(t, content.LevelH1, second.Level)
	require.Equal(t, content.SourceLibrary, second.SourceType)

	require.Len(t, doc.Widgets, 1)
	require.Equal(t, content.WidgetFormula, doc.Widgets[0].Type)
	require.NotEmpty(t, doc.Widgets[0].ID)

	h := doc.Metadata.Health
	require.Equal(t, 6, h.TotalWords)
	require.Equal(t, 6, doc.Metadata.Synthesis.FinalWords)
	require.Equal(t, 2, h.TotalSections)
	require.Equal(t, 3, h.AvgWordsPerSection)
	require.Equal(t, 2, h.SectionsBelowThreshold)
	require.True(t, h.WordGoalMet)

	pm := doc.Metadata.PracticeMetrics
	require.InDelta(t, 0.82, pm.PracticeReadiness, 1e-9)
	require.NotNil(t, pm.ModelReportedReadiness)
	require.InDelta(t, 0.97, *pm.ModelReportedReadiness, 1e-9)
	require.Equal(t, 2, pm.FormulasIncluded)
	require.NotNil(t, pm.AppearsInSupuestos)

	require.Equal(t, []string{"Ley 9-1991.pdf"}, doc.Metadata.SourceDocuments)
	require.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), doc.Metadata.GeneratedAt)
	require.Equal(t, content.ComplexityHigh, doc.Metadata.Complexity)
	require.Equal(t, 90, doc.Metadata.EstimatedStudyTime)
	require.Equal(t, 1600, doc.Metadata.Synthesis.OriginalWords)
	require.Equal(t, 10, doc.Metadata.Synthesis.ConceptsIncluded)
	require.Equal(t, 2, doc.Metadata.Synthesis.ConceptsDropped)
}

func TestReadinessWarning(t *testing.T) {
	passing := make([]spec, 7)
	for i := range passing {
		passing[i] = spec{words: 260, cites: 2, sourced: true}
	}
	c := &script{replies: []string{synthesisJSON(t, passing, nil)}}

	doc, err := newSynth(c).Synthesize(context.Background(), input())
	require.NoError(t, err)
	require.Equal(t, content.QualityOK, doc.QualityStatus)
	require.Equal(t, []string{"Practice readiness 82% por debajo del objetivo 85%"}, doc.Warnings)
}
