package expert

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/jsonx"
	"github.com/sweetpotato0/studygen/prompt"
)

// Technical drafts definitions and calculations from CORE and SUPPLEMENTARY
// documents.
type Technical struct {
	base
}

// NewTechnical builds the technical-concepts expert.
func NewTechnical(completer llm.Completer, retriever Retriever, opts ...Option) *Technical {
	return &Technical{base: newBase(profile{
		role:        content.RoleTechnical,
		template:    prompt.Technical,
		temperature: 0.6,
		maxTokens:   4096,
		wordShare:   0.3,
		evidenceMax: 12,
		category:    "técnicos",
	}, completer, retriever, opts)}
}

// Draft implements Expert.
func (e *Technical) Draft(ctx context.Context, req Request) (content.ExpertOutput, error) {
	core, err := e.retriever.Query(ctx, req.Topic.Title, content.CategoryCore, 12, "")
	if err != nil {
		return e.failedStub(req.Topic, err), fmt.Errorf("retrieve core evidence: %w", err)
	}
	extra, err := e.retriever.Query(ctx, req.Topic.Title, content.CategorySupplementary, 10, req.Topic.Filename)
	if err != nil {
		return e.failedStub(req.Topic, err), fmt.Errorf("retrieve supplementary evidence: %w", err)
	}
	data := prompt.ExpertData{CommonCalculations: req.Plan.CommonCalculations}
	return e.generate(ctx, req, mergeChunks(core, extra), data, parseTechnical)
}

func mergeChunks(lists ...[]content.EvidenceChunk) []content.EvidenceChunk {
	seen := map[string]struct{}{}
	var out []content.EvidenceChunk
	for _, list := range lists {
		for _, c := range list {
			if _, ok := seen[c.SourceID]; ok {
				continue
			}
			seen[c.SourceID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func parseTechnical(raw string) (content.ExpertOutput, error) {
	resp, err := jsonx.Extract[technicalResponse](raw)
	if err != nil {
		return content.ExpertOutput{}, err
	}
	return content.ExpertOutput{
		Content:    resp.Content,
		References: mergeRefs(formulaRefs(resp.Formulas)),
		Confidence: confidenceOr(resp.Confidence),
		Gaps:       resp.Gaps,
		Metadata: content.ExpertMetadata{
			Definitions: resp.Definitions,
			Formulas:    resp.Formulas,
			Sections:    headings(resp.Content),
		},
	}, nil
}
