package curator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/planner"
)

func sampleDrafts() []content.ExpertOutput {
	return []content.ExpertOutput{
		{
			Content: "## Objeto de la ley\nEl Art. 7 regula la **zona de servidumbre**.",
			Metadata: content.ExpertMetadata{
				Source:      content.RoleTheoretical,
				Definitions: []content.Definition{{Term: "Dominio público"}},
			},
		},
		{
			Content: "## Resolución\n\nEn Supuesto 1 se calcula la zona de servidumbre según el Art. 7.\n\nEn Supuesto 2 se pide el dominio público.",
			Metadata: content.ExpertMetadata{
				Source:         content.RolePractical,
				WorkedExamples: []string{"Supuesto 1", "Supuesto 2"},
				Formulas:       []content.Formula{{Name: "Línea límite", AppearsIn: []string{"Supuesto 2"}}},
			},
		},
		{
			Content: "## Firmes\n**Explanada** de la carretera",
			Metadata: content.ExpertMetadata{
				Source:      content.RoleTechnical,
				Definitions: []content.Definition{{Term: "CBR"}},
			},
		},
	}
}

func byID(r *content.CurationReport) map[string]content.Concept {
	out := map[string]content.Concept{}
	for _, c := range r.Concepts {
		out[c.ID] = c
	}
	return out
}

func TestCurateScoresConcepts(t *testing.T) {
	c := New(WithLogger(logging.Discard()))
	report, err := c.Curate(context.Background(), sampleDrafts())
	require.NoError(t, err)

	concepts := byID(report)
	require.Len(t, concepts, 9)

	art := concepts["art-7"]
	require.Equal(t, KindArticle, art.Kind)
	require.Equal(t, content.RoleTheoretical, art.Source)
	require.InDelta(t, 0.75, art.Criticality.Score, 1e-9)
	require.Equal(t, []string{"Supuesto 1"}, art.Criticality.AppearsInSupuestos)
	require.True(t, art.Covered)

	def := concepts["dominio-publico"]
	require.Equal(t, KindDefinition, def.Kind)
	require.InDelta(t, 0.5, def.Criticality.ExamFrequency, 1e-9)
	require.Equal(t, content.KeepSummary, def.Recommendation)

	formula := concepts["linea-limite"]
	require.True(t, formula.Criticality.CalculationRequired)
	require.InDelta(t, 0.8, formula.Criticality.TheoreticalImportance, 1e-9)
	require.InDelta(t, 0.49, formula.Criticality.Score, 1e-9)
	require.False(t, formula.Covered)

	require.Equal(t, content.Drop, concepts["explanada"].Recommendation)
	require.Equal(t, content.Drop, concepts["objeto-de-la-ley"].Recommendation)
	require.Equal(t, content.KeepSummary, concepts["resolucion"].Recommendation)

	require.Equal(t, content.CurationSummary{Total: 9, Critical: 0, Important: 6, Droppable: 3}, report.Summary)
	require.InDelta(t, 0.752, report.PracticeReadiness, 1e-9)

	// Ties on score are ordered by id.
	require.Equal(t, "art-7", report.Concepts[0].ID)
	require.Equal(t, "dominio-publico", report.Concepts[1].ID)
	for i := 1; i < len(report.Concepts); i++ {
		require.GreaterOrEqual(t, report.Concepts[i-1].Criticality.Score, report.Concepts[i].Criticality.Score)
	}
}

func TestCurateBoostsRecurringStatutes(t *testing.T) {
	patterns := planner.PracticePatterns{
		TotalExamples: 15,
		CriticalLaws:  []planner.LawFrequency{{Law: "Ley 9/1991", Articles: []string{"Art. 7", "artículo 25"}, Appearances: 12}},
	}
	c := New(WithPatterns(patterns), WithLogger(logging.Discard()))
	report, err := c.Curate(context.Background(), sampleDrafts())
	require.NoError(t, err)

	art := byID(report)["art-7"]
	require.InDelta(t, 0.8, art.Criticality.ExamFrequency, 1e-9)
	require.InDelta(t, 0.9, art.Criticality.Score, 1e-9)
	require.Equal(t, content.KeepFull, art.Recommendation)
	require.Equal(t, 1, report.Summary.Critical)
	require.Equal(t, "art-7", report.Critical(10)[0].ID)
}

func TestCurateIsDeterministic(t *testing.T) {
	c := New(WithLogger(logging.Discard()))
	first, err := c.Curate(context.Background(), sampleDrafts())
	require.NoError(t, err)

	drafts := sampleDrafts()
	drafts[0], drafts[2] = drafts[2], drafts[0]
	second, err := c.Curate(context.Background(), drafts)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reports differ (-first +second):\n%s", diff)
	}
}

func TestCurateIgnoresDegradedDrafts(t *testing.T) {
	drafts := sampleDrafts()
	drafts[1].Degraded = true
	c := New(WithLogger(logging.Discard()))
	report, err := c.Curate(context.Background(), drafts)
	require.NoError(t, err)

	for _, concept := range report.Concepts {
		require.NotEqual(t, content.RolePractical, concept.Source)
		require.False(t, concept.Covered)
	}
	require.Zero(t, report.PracticeReadiness)
}

func TestCurateRejectsIncompleteDrafts(t *testing.T) {
	c := New(WithLogger(logging.Discard()))
	_, err := c.Curate(context.Background(), sampleDrafts()[:2])
	require.True(t, errors.Is(err, serrors.ErrInvalidInput), "got %v", err)

	drafts := sampleDrafts()
	drafts[2].Metadata.Source = content.RolePractical
	_, err = c.Curate(context.Background(), drafts)
	require.ErrorIs(t, err, serrors.ErrInvalidInput)
}

func TestCurateCapsConcepts(t *testing.T) {
	c := New(WithMaxConcepts(3), WithLogger(logging.Discard()))
	report, err := c.Curate(context.Background(), sampleDrafts())
	require.NoError(t, err)
	require.Len(t, report.Concepts, 3)
}

func TestBucket(t *testing.T) {
	cases := map[float64]content.Recommendation{
		0.95:  content.KeepFull,
		0.801: content.KeepFull,
		0.8:   content.KeepSummary,
		0.2:   content.KeepSummary,
		0.199: content.Drop,
		0:     content.Drop,
	}
	for score, want := range cases {
		require.Equal(t, want, Bucket(score), "score %v", score)
	}
}

func TestReadinessWithoutKeptConcepts(t *testing.T) {
	require.Zero(t, Readiness(nil))
	require.Zero(t, Readiness([]content.Concept{{Recommendation: content.Drop, Covered: true, Criticality: content.Criticality{Score: 0.1}}}))
}
