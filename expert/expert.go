// Package expert implements the three drafting roles. Each expert pulls its
// own evidence, prompts the completion backend for strict JSON and returns a
// draft. Experts never fail without a draft: empty evidence yields a
// low-confidence stub and backend failures yield an error-flagged stub.
package expert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/pkg/telemetry"
	"github.com/sweetpotato0/studygen/prompt"
	"github.com/sweetpotato0/studygen/retrieval"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// EmptyEvidenceConfidence is the confidence of a draft built without evidence.
	EmptyEvidenceConfidence = 0.35
	// FailedConfidence is the confidence of a draft whose generation failed.
	FailedConfidence = 0.3

	defaultConfidence = 0.85
	excerptRunes      = 400
	maxExcerpts       = 3
)

// Request is the input shared by every expert.
type Request struct {
	Topic content.Topic
	Plan  content.StrategicPlan
}

// Expert drafts one slice of the study document.
type Expert interface {
	Role() content.Role
	// Draft always returns a well-formed output. The error reports a
	// degraded draft so the caller can mark the step as failed.
	Draft(ctx context.Context, req Request) (content.ExpertOutput, error)
}

// Retriever is the evidence source experts query.
type Retriever interface {
	Query(ctx context.Context, topicTitle string, category content.Category, limit int, filenameHint string) ([]content.EvidenceChunk, error)
}

// Option configures an expert.
type Option func(*base)

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPrompts replaces the default templates.
func WithPrompts(m *prompt.Manager) Option {
	return func(b *base) {
		if m != nil {
			b.prompts = m
		}
	}
}

// profile holds the per-role generation settings.
type profile struct {
	role        content.Role
	template    string
	temperature float64
	maxTokens   int
	wordShare   float64 // fraction of the plan's target words
	evidenceMax int
	category    string // label used in stub text and logs
}

type base struct {
	profile
	llm       llm.Completer
	retriever Retriever
	prompts   *prompt.Manager
	logger    *slog.Logger
}

func newBase(p profile, completer llm.Completer, retriever Retriever, opts []Option) base {
	b := base{
		profile:   p,
		llm:       completer,
		retriever: retriever,
		prompts:   prompt.Default(),
		logger:    logging.WithComponent(string(p.role)),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Role implements Expert.
func (b *base) Role() content.Role { return b.role }

func (b *base) targetWords(plan content.StrategicPlan) int {
	return int(math.Round(float64(plan.TargetWords) * b.wordShare))
}

// parseFunc turns raw model text into a draft.
type parseFunc func(raw string) (content.ExpertOutput, error)

// generate runs the shared part of every draft: stub on empty evidence,
// prompt rendering, completion and parsing.
func (b *base) generate(ctx context.Context, req Request, chunks []content.EvidenceChunk, data prompt.ExpertData, parse parseFunc) (out content.ExpertOutput, err error) {
	ctx, span := telemetry.Start(ctx, "expert.draft",
		telemetry.RoleKey.String(string(b.role)),
		attribute.Int("evidence", len(chunks)),
	)
	defer func() {
		span.SetAttributes(
			attribute.Float64("confidence", out.Confidence),
			attribute.Bool("degraded", out.Degraded),
		)
		telemetry.End(span, err)
	}()

	if len(chunks) == 0 {
		b.logger.Warn("no evidence found", "topic", req.Topic.Title, "category", b.category)
		return b.emptyStub(req.Topic), nil
	}

	data.Title = req.Topic.Title
	data.Filename = req.Topic.Filename
	data.Group = req.Topic.Group
	data.TargetWords = b.targetWords(req.Plan)
	data.EvidenceCount = len(chunks)
	data.Evidence = retrieval.FormatEvidence(chunks, b.evidenceMax)

	text, err := b.prompts.Render(b.template, data)
	if err != nil {
		return b.failedStub(req.Topic, err), fmt.Errorf("render %s prompt: %w", b.role, err)
	}

	if err := ctx.Err(); err != nil {
		return b.failedStub(req.Topic, err), err
	}
	raw, err := b.llm.Complete(llm.WithRole(ctx, string(b.role)), text, llm.Options{
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
		ForceJSON:   true,
	})
	if err != nil {
		b.logger.Error("completion failed", "topic", req.Topic.Title, "error", err)
		return b.failedStub(req.Topic, err), fmt.Errorf("%s completion: %w", b.role, err)
	}

	out, err = parse(raw)
	if err != nil {
		b.logger.Error("unparseable draft", "topic", req.Topic.Title, "error", err)
		return b.failedStub(req.Topic, err), fmt.Errorf("%s response: %w", b.role, err)
	}

	out.Content = content.SanitizeText(out.Content)
	if strings.TrimSpace(out.Content) == "" {
		err = fmt.Errorf("%s response: empty content: %w", b.role, serrors.ErrEmptyCompletion)
		b.logger.Error("empty draft", "topic", req.Topic.Title)
		return b.failedStub(req.Topic, err), err
	}
	out.Confidence = clampConfidence(out.Confidence)
	out.Metadata.Source = b.role
	out.Metadata.EvidenceCount = len(chunks)
	out.Metadata.WordCount = content.CountWords(out.Content)
	if len(out.Metadata.Excerpts) == 0 {
		out.Metadata.Excerpts = excerpts(chunks)
	}
	if len(out.References) == 0 {
		out.References = retrieval.Filenames(chunks)
	}
	if out.Gaps == nil {
		out.Gaps = []string{}
	}

	b.logger.Info("draft generated",
		"topic", req.Topic.Title,
		"words", out.Metadata.WordCount,
		"target_words", data.TargetWords,
		"confidence", out.Confidence,
	)
	return out, nil
}

func (b *base) emptyStub(topic content.Topic) content.ExpertOutput {
	return content.ExpertOutput{
		Content:    fmt.Sprintf("## %s: %s\n\nContenido pendiente por falta de documentos %s.", stubHeading[b.role], topic.Title, b.category),
		References: []string{},
		Confidence: EmptyEvidenceConfidence,
		Gaps:       []string{fmt.Sprintf("No se encontraron documentos %s", b.category)},
		Metadata:   content.ExpertMetadata{Source: b.role},
		Degraded:   true,
	}
}

func (b *base) failedStub(topic content.Topic, err error) content.ExpertOutput {
	return content.ExpertOutput{
		Content:    fmt.Sprintf("## %s: %s\n\nError generando contenido.", stubHeading[b.role], topic.Title),
		References: []string{},
		Confidence: FailedConfidence,
		Gaps:       []string{"Error en generación"},
		Metadata:   content.ExpertMetadata{Source: b.role},
		Degraded:   true,
		Error:      err.Error(),
	}
}

var stubHeading = map[content.Role]string{
	content.RoleTheoretical: "Marco Legal",
	content.RolePractical:   "Guía de Resolución de Supuestos",
	content.RoleTechnical:   "Conceptos Técnicos",
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return defaultConfidence
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// excerpts turns the best evidence into source chunks for attribution.
func excerpts(chunks []content.EvidenceChunk) []content.SourceChunk {
	n := min(len(chunks), maxExcerpts)
	out := make([]content.SourceChunk, 0, n)
	for _, c := range chunks[:n] {
		out = append(out, content.SourceChunk{
			ChunkID:      c.SourceID,
			OriginalText: content.Truncate(content.SanitizeText(c.Fragment), excerptRunes),
			Confidence:   c.Confidence,
		})
	}
	return out
}
