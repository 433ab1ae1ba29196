package expert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/jsonx"
	"github.com/sweetpotato0/studygen/pkg/logging"
)

type query struct {
	category content.Category
	limit    int
	hint     string
}

type fakeRetriever struct {
	mu      sync.Mutex
	chunks  map[content.Category][]content.EvidenceChunk
	queries []query
	err     error
}

func (f *fakeRetriever) Query(ctx context.Context, _ string, category content.Category, limit int, hint string) ([]content.EvidenceChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query{category, limit, hint})
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[category], nil
}

type recorder struct {
	mu      sync.Mutex
	prompts []string
	opts    []llm.Options
	roles   []string
	reply   string
	err     error
}

func (r *recorder) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	r.opts = append(r.opts, opts)
	r.roles = append(r.roles, llm.RoleFrom(ctx))
	return r.reply, r.err
}

func chunk(id, file string, cat content.Category) content.EvidenceChunk {
	return content.EvidenceChunk{SourceID: id, Filename: file, Fragment: "Artículo 3. Texto de " + id, Category: cat, Confidence: 0.9}
}

var testReq = Request{
	Topic: content.Topic{ID: "t1", Title: "Ley de Carreteras", Filename: "Ley 9-1991.pdf"},
	Plan: content.StrategicPlan{
		TargetWords:      1000,
		TargetSections:   6,
		PracticeExamples: []string{"Supuesto 11"},
	},
}

func TestTheoreticalDraft(t *testing.T) {
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryCore: {chunk("db-1", "Ley 9-1991.pdf", content.CategoryCore)},
	}}
	rec := &recorder{reply: "```json\n{\"content\": \"## Objeto\\nLa ley regula **zona de servidumbre**.\", \"definitions\": [\"Dominio público: bienes de titularidad pública\", {\"term\": \"Travesía\", \"definition\": \"tramo urbano\"}], \"confidence\": 1.4}\n```"}
	e := NewTheoretical(rec, ret, WithLogger(logging.Discard()))

	out, err := e.Draft(context.Background(), testReq)
	if err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	if e.Role() != content.RoleTheoretical || out.Metadata.Source != content.RoleTheoretical {
		t.Fatalf("unexpected role tags: %s / %s", e.Role(), out.Metadata.Source)
	}
	if len(ret.queries) != 1 || ret.queries[0] != (query{content.CategoryCore, 15, "Ley 9-1991.pdf"}) {
		t.Fatalf("unexpected queries: %+v", ret.queries)
	}
	if got := rec.opts[0]; got.Temperature != 0.5 || got.MaxTokens != 4096 || !got.ForceJSON {
		t.Fatalf("unexpected options: %+v", got)
	}
	if rec.roles[0] != string(content.RoleTheoretical) {
		t.Fatalf("completion not tagged with role: %q", rec.roles[0])
	}
	if !strings.Contains(rec.prompts[0], "TARGET: 300 palabras") {
		t.Fatalf("prompt missing 30%% word target:\n%s", rec.prompts[0])
	}
	if !strings.Contains(rec.prompts[0], "[1] (id:db-1") {
		t.Fatalf("prompt missing evidence block")
	}
	if out.Confidence != 1 {
		t.Fatalf("confidence not clamped: %v", out.Confidence)
	}
	if len(out.Metadata.Definitions) != 2 || out.Metadata.Definitions[0].Term != "Dominio público" {
		t.Fatalf("unexpected definitions: %+v", out.Metadata.Definitions)
	}
	if len(out.Metadata.Sections) != 1 || out.Metadata.Sections[0] != "Objeto" {
		t.Fatalf("unexpected sections: %v", out.Metadata.Sections)
	}
	if len(out.Metadata.Excerpts) != 1 || out.Metadata.Excerpts[0].ChunkID != "db-1" {
		t.Fatalf("excerpts not derived from evidence: %+v", out.Metadata.Excerpts)
	}
	if len(out.References) != 1 || out.References[0] != "Ley 9-1991.pdf" {
		t.Fatalf("references not derived from evidence: %v", out.References)
	}
	if out.Metadata.WordCount != content.CountWords(out.Content) || out.Metadata.EvidenceCount != 1 {
		t.Fatalf("unexpected counters: %+v", out.Metadata)
	}
	if out.Degraded || out.Gaps == nil {
		t.Fatalf("unexpected flags: degraded=%v gaps=%v", out.Degraded, out.Gaps)
	}
}

func TestEmptyEvidenceReturnsStub(t *testing.T) {
	rec := &recorder{}
	e := NewTheoretical(rec, &fakeRetriever{}, WithLogger(logging.Discard()))

	out, err := e.Draft(context.Background(), testReq)
	if err != nil {
		t.Fatalf("stub should not report an error: %v", err)
	}
	if out.Confidence != EmptyEvidenceConfidence || !out.Degraded || len(out.Gaps) != 1 {
		t.Fatalf("unexpected stub: %+v", out)
	}
	if len(rec.prompts) != 0 {
		t.Fatalf("completion should not be called without evidence")
	}
	if !strings.Contains(out.Content, testReq.Topic.Title) {
		t.Fatalf("stub should mention the topic: %q", out.Content)
	}
}

func TestCompletionErrorReturnsFlaggedStub(t *testing.T) {
	boom := errors.New("backend down")
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryPractice: {chunk("db-9", "Supuesto 1.pdf", content.CategoryPractice)},
	}}
	e := NewPractical(&recorder{err: boom}, ret, WithLogger(logging.Discard()))

	out, err := e.Draft(context.Background(), testReq)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if out.Confidence != FailedConfidence || !out.Degraded || out.Error == "" {
		t.Fatalf("unexpected error stub: %+v", out)
	}
}

func TestUnparseableResponseReturnsParseError(t *testing.T) {
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryCore: {chunk("db-1", "Norma 6.1-IC.pdf", content.CategoryCore)},
	}}
	e := NewTechnical(&recorder{reply: "lo siento, no puedo"}, ret, WithLogger(logging.Discard()))

	out, err := e.Draft(context.Background(), testReq)
	var perr *jsonx.ParseError
	if !errors.As(err, &perr) || perr.Stage != jsonx.StageNoObject {
		t.Fatalf("expected no_object parse error, got %v", err)
	}
	if out.Confidence != FailedConfidence || !out.Degraded {
		t.Fatalf("unexpected error stub: %+v", out)
	}
}

func TestEmptyContentReturnsFlaggedStub(t *testing.T) {
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryCore: {chunk("db-1", "Ley 9-1991.pdf", content.CategoryCore)},
	}}
	for _, reply := range []string{`{"content": ""}`, `{"content": "  \n ", "confidence": 0.9}`, `{"definitions": ["Carretera: vía pública"]}`} {
		e := NewTheoretical(&recorder{reply: reply}, ret, WithLogger(logging.Discard()))
		out, err := e.Draft(context.Background(), testReq)
		if !errors.Is(err, serrors.ErrEmptyCompletion) {
			t.Fatalf("%s: expected empty completion error, got %v", reply, err)
		}
		if out.Confidence != FailedConfidence || !out.Degraded || out.Error == "" {
			t.Fatalf("%s: unexpected error stub: %+v", reply, out)
		}
	}
}

func TestPracticalSortsPlanExamplesFirst(t *testing.T) {
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryPractice: {
			chunk("db-1", "Supuesto 1.pdf", content.CategoryPractice),
			chunk("db-2", "Supuesto 110.pdf", content.CategoryPractice),
			chunk("db-3", "Supuesto 11 - Carreteras.pdf", content.CategoryPractice),
		},
	}}
	rec := &recorder{reply: `{"content": "En Supuesto 3 se pregunta por la línea límite.", "keyFormulas": [{"name": "Línea límite", "formula": "25 m", "reference": "Art. 28"}], "supuestos": "Supuesto 11"}`}
	e := NewPractical(rec, ret, WithLogger(logging.Discard()))

	out, err := e.Draft(context.Background(), testReq)
	if err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	if ret.queries[0] != (query{content.CategoryPractice, 20, ""}) {
		t.Fatalf("unexpected query: %+v", ret.queries[0])
	}
	first := strings.Index(rec.prompts[0], "id:db-3")
	second := strings.Index(rec.prompts[0], "id:db-1")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("worked example from the plan should come first:\n%s", rec.prompts[0])
	}
	if got := rec.opts[0]; got.Temperature != 0.7 || got.MaxTokens != 8192 {
		t.Fatalf("unexpected options: %+v", got)
	}
	if !strings.Contains(rec.prompts[0], "TARGET: 400 palabras") {
		t.Fatalf("prompt missing 40%% word target")
	}
	want := []string{"Supuesto 11", "Supuesto 3"}
	if len(out.Metadata.WorkedExamples) != 2 || out.Metadata.WorkedExamples[0] != want[0] || out.Metadata.WorkedExamples[1] != want[1] {
		t.Fatalf("unexpected worked examples: %v", out.Metadata.WorkedExamples)
	}
	if len(out.References) != 1 || out.References[0] != "Art. 28" {
		t.Fatalf("references should come from formulas: %v", out.References)
	}
	if out.Confidence != defaultConfidence {
		t.Fatalf("missing confidence should default, got %v", out.Confidence)
	}
}

func TestTechnicalMergesCategories(t *testing.T) {
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryCore:          {chunk("db-1", "Ley.pdf", content.CategoryCore)},
		content.CategorySupplementary: {chunk("db-1", "Ley.pdf", content.CategoryCore), chunk("db-7", "Norma.pdf", content.CategorySupplementary)},
	}}
	rec := &recorder{reply: `{"content": "## Firmes", "formulas": [{"name": "Espesor", "formula": "e = f(CBR)"}], "confidence": 0.7}`}
	e := NewTechnical(rec, ret, WithLogger(logging.Discard()))

	out, err := e.Draft(context.Background(), testReq)
	if err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	want := []query{{content.CategoryCore, 12, ""}, {content.CategorySupplementary, 10, "Ley 9-1991.pdf"}}
	if len(ret.queries) != 2 || ret.queries[0] != want[0] || ret.queries[1] != want[1] {
		t.Fatalf("unexpected queries: %+v", ret.queries)
	}
	if out.Metadata.EvidenceCount != 2 {
		t.Fatalf("expected deduplicated evidence, got %d", out.Metadata.EvidenceCount)
	}
	if len(out.Metadata.Formulas) != 1 || out.Metadata.Formulas[0].Expression != "e = f(CBR)" {
		t.Fatalf("unexpected formulas: %+v", out.Metadata.Formulas)
	}
	if out.Confidence != 0.7 {
		t.Fatalf("unexpected confidence: %v", out.Confidence)
	}
}

func TestCancelledBeforeCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ret := &fakeRetriever{chunks: map[content.Category][]content.EvidenceChunk{
		content.CategoryCore: {chunk("db-1", "Ley.pdf", content.CategoryCore)},
	}}
	rec := &recorder{reply: `{"content": "x"}`}
	e := NewTheoretical(rec, ret, WithLogger(logging.Discard()))

	_, err := e.Draft(ctx, testReq)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rec.prompts) != 0 {
		t.Fatalf("completion must not run after cancellation")
	}
}

func TestFromExampleMatchesWholeNumber(t *testing.T) {
	keys := []string{"supuesto-1"}
	cases := map[string]bool{
		"Supuesto 1.pdf":      true,
		"SUPUESTO_1_2023.pdf": true,
		"Supuesto 11.pdf":     false,
		"Otro documento.pdf":  false,
	}
	for name, want := range cases {
		if got := fromExample(name, keys); got != want {
			t.Fatalf("fromExample(%q) = %v, want %v", name, got, want)
		}
	}
}
