package expert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/jsonx"
	"github.com/sweetpotato0/studygen/prompt"
)

// Practical drafts the worked-example resolution guide from PRACTICE documents.
type Practical struct {
	base
}

// NewPractical builds the worked-example expert.
func NewPractical(completer llm.Completer, retriever Retriever, opts ...Option) *Practical {
	return &Practical{base: newBase(profile{
		role:        content.RolePractical,
		template:    prompt.Practical,
		temperature: 0.7,
		maxTokens:   8192,
		wordShare:   0.4,
		evidenceMax: 15,
		category:    "PRACTICE",
	}, completer, retriever, opts)}
}

// Draft implements Expert.
func (e *Practical) Draft(ctx context.Context, req Request) (content.ExpertOutput, error) {
	chunks, err := e.retriever.Query(ctx, req.Topic.Title, content.CategoryPractice, 20, "")
	if err != nil {
		return e.failedStub(req.Topic, err), fmt.Errorf("retrieve practice evidence: %w", err)
	}
	chunks = examplesFirst(chunks, req.Plan.PracticeExamples)
	data := prompt.ExpertData{
		PracticeExamples:   req.Plan.PracticeExamples,
		CommonCalculations: req.Plan.CommonCalculations,
	}
	return e.generate(ctx, req, chunks, data, parsePractical)
}

// examplesFirst moves chunks from the plan's worked examples to the front,
// keeping relative order otherwise.
func examplesFirst(chunks []content.EvidenceChunk, examples []string) []content.EvidenceChunk {
	if len(examples) == 0 || len(chunks) < 2 {
		return chunks
	}
	keys := make([]string, 0, len(examples))
	for _, ex := range examples {
		if k := content.Slugify(ex); k != "" {
			keys = append(keys, k)
		}
	}
	out := append([]content.EvidenceChunk(nil), chunks...)
	sort.SliceStable(out, func(i, j int) bool {
		return fromExample(out[i].Filename, keys) && !fromExample(out[j].Filename, keys)
	})
	return out
}

func fromExample(filename string, keys []string) bool {
	slug := content.Slugify(filename)
	for _, k := range keys {
		idx := strings.Index(slug, k)
		for idx >= 0 {
			end := idx + len(k)
			if end == len(slug) || slug[end] == '-' {
				return true
			}
			next := strings.Index(slug[end:], k)
			if next < 0 {
				break
			}
			idx = end + next
		}
	}
	return false
}

func parsePractical(raw string) (content.ExpertOutput, error) {
	resp, err := jsonx.Extract[practicalResponse](raw)
	if err != nil {
		return content.ExpertOutput{}, err
	}
	return content.ExpertOutput{
		Content:    resp.Content,
		References: mergeRefs(formulaRefs(resp.KeyFormulas)),
		Confidence: confidenceOr(resp.Confidence),
		Gaps:       resp.Gaps,
		Metadata: content.ExpertMetadata{
			Formulas:        resp.KeyFormulas,
			Sections:        headings(resp.Content),
			ResolutionSteps: resp.ResolutionSteps,
			CommonMistakes:  resp.CommonMistakes,
			PracticalTips:   resp.PracticalTips,
			WorkedExamples:  mergeRefs(resp.Supuestos, content.WorkedExampleRefs(resp.Content)),
		},
	}, nil
}
