package expert

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/jsonx"
	"github.com/sweetpotato0/studygen/prompt"
)

// Theoretical drafts the legal framework from CORE documents.
type Theoretical struct {
	base
}

// NewTheoretical builds the legal-framework expert.
func NewTheoretical(completer llm.Completer, retriever Retriever, opts ...Option) *Theoretical {
	return &Theoretical{base: newBase(profile{
		role:        content.RoleTheoretical,
		template:    prompt.Theoretical,
		temperature: 0.5,
		maxTokens:   4096,
		wordShare:   0.3,
		evidenceMax: 12,
		category:    "CORE",
	}, completer, retriever, opts)}
}

// Draft implements Expert.
func (e *Theoretical) Draft(ctx context.Context, req Request) (content.ExpertOutput, error) {
	chunks, err := e.retriever.Query(ctx, req.Topic.Title, content.CategoryCore, 15, req.Topic.Filename)
	if err != nil {
		return e.failedStub(req.Topic, err), fmt.Errorf("retrieve core evidence: %w", err)
	}
	data := prompt.ExpertData{CriticalLaws: req.Plan.CriticalLaws}
	return e.generate(ctx, req, chunks, data, parseTheoretical)
}

func parseTheoretical(raw string) (content.ExpertOutput, error) {
	resp, err := jsonx.Extract[theoreticalResponse](raw)
	if err != nil {
		return content.ExpertOutput{}, err
	}
	return content.ExpertOutput{
		Content:    resp.Content,
		References: mergeRefs(resp.References),
		Confidence: confidenceOr(resp.Confidence),
		Gaps:       resp.Gaps,
		Metadata: content.ExpertMetadata{
			Definitions: resp.Definitions,
			Sections:    headings(resp.Content),
			Excerpts:    resp.Sources.Chunks,
		},
	}, nil
}
