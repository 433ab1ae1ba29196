// Package synthesizer merges the expert drafts into the final study document.
// Every candidate passes through a pure quality gate; a failing candidate gets
// exactly one repair attempt before the best of the two is accepted.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/llm"
	"github.com/sweetpotato0/studygen/pkg/jsonx"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/pkg/telemetry"
	"github.com/sweetpotato0/studygen/prompt"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// MaxAttempts bounds completion calls per synthesis.
	MaxAttempts = 2

	temperature = 0.6
	maxTokens   = 16384

	// ReadinessGoal is the practice readiness below which a warning is attached.
	ReadinessGoal = 0.85
	// readinessDivergence is the gap between curator and model readiness
	// that gets logged.
	readinessDivergence = 0.15
)

// Input is everything a synthesis needs.
type Input struct {
	Topic  content.Topic
	Plan   content.StrategicPlan
	Drafts []content.ExpertOutput
	Report *content.CurationReport
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPrompts replaces the default templates.
func WithPrompts(m *prompt.Manager) Option {
	return func(s *Synthesizer) {
		if m != nil {
			s.prompts = m
		}
	}
}

// WithClock overrides time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		if now != nil {
			s.now = now
		}
	}
}

// Synthesizer produces GeneratedTopicContent from drafts and curation.
type Synthesizer struct {
	llm     llm.Completer
	prompts *prompt.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a Synthesizer backed by completer.
func New(completer llm.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		llm:     completer,
		prompts: prompt.Default(),
		logger:  logging.WithComponent(string(content.RoleStrategist)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type attempt struct {
	n          int
	raw        string
	resp       *response
	doc        *content.GeneratedTopicContent
	violations []Violation
}

// better reports whether a should replace b as the kept candidate.
func (a *attempt) better(b *attempt) bool {
	if b == nil || b.doc == nil {
		return a.doc != nil
	}
	return a.doc != nil && len(a.violations) <= len(b.violations)
}

// Synthesize runs the bounded generate/validate/repair loop. Completion
// failures are fatal; gate failures are not.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (doc *content.GeneratedTopicContent, err error) {
	ctx, span := telemetry.Start(ctx, "synthesizer.synthesize",
		telemetry.TopicKey.String(in.Topic.ID),
		attribute.Int("target_words", in.Plan.TargetWords),
		attribute.Int("target_sections", in.Plan.TargetSections),
	)
	defer func() { telemetry.End(span, err) }()

	if in.Report == nil {
		return nil, fmt.Errorf("synthesize: missing curation report: %w", serrors.ErrInvalidInput)
	}
	targets := TargetsFor(in.Plan)
	data := s.promptData(in, targets)
	base, err := s.prompts.Render(prompt.Synthesis, data)
	if err != nil {
		return nil, fmt.Errorf("render synthesis prompt: %w", err)
	}

	var best *attempt
	for n := 1; n <= MaxAttempts; n++ {
		text := base
		if best != nil {
			data.Violations = violationLines(best.violations)
			data.Previous = best.raw
			repair, err := s.prompts.Render(prompt.Repair, data)
			if err != nil {
				return nil, fmt.Errorf("render repair prompt: %w", err)
			}
			text += "\n" + repair
		}

		cur, err := s.attempt(ctx, n, text, in, targets)
		if err != nil {
			return nil, err
		}
		if cur.better(best) || best == nil {
			best = cur
		}
		if cur.doc != nil && len(cur.violations) == 0 {
			break
		}
		s.logger.Warn("quality gate failed",
			"topic", in.Topic.ID,
			"attempt", n,
			"violations", violationLines(cur.violations),
		)
	}

	if best.doc == nil {
		return nil, fmt.Errorf("synthesize %s: no parseable response after %d attempts: %w", in.Topic.ID, MaxAttempts, serrors.ErrEmptyCompletion)
	}
	doc = s.finish(best, in)
	span.SetAttributes(
		attribute.Int("attempts", doc.Metadata.Synthesis.Attempts),
		attribute.String("quality", string(doc.QualityStatus)),
		attribute.Int("final_words", doc.Metadata.Health.TotalWords),
	)
	s.logger.Info("synthesis complete",
		"topic", in.Topic.ID,
		"attempts", doc.Metadata.Synthesis.Attempts,
		"quality", doc.QualityStatus,
		"words", doc.Metadata.Health.TotalWords,
		"sections", doc.Metadata.Health.TotalSections,
		"widgets", len(doc.Widgets),
	)
	return doc, nil
}

func (s *Synthesizer) attempt(ctx context.Context, n int, text string, in Input, targets Targets) (cur *attempt, err error) {
	ctx, span := telemetry.Start(ctx, "synthesizer.attempt", attribute.Int("attempt", n))
	defer func() { telemetry.End(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.llm.Complete(llm.WithRole(ctx, string(content.RoleStrategist)), text, llm.Options{
		Temperature: temperature,
		MaxTokens:   maxTokens,
		ForceJSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis completion (attempt %d): %w", n, err)
	}

	cur = &attempt{n: n, raw: raw}
	resp, perr := jsonx.Extract[response](raw)
	if perr == nil && len(resp.Sections) == 0 {
		perr = &jsonx.ParseError{Stage: jsonx.StageUnmarshal, Err: errors.New("no sections")}
	}
	if perr != nil {
		s.logger.Warn("unparseable synthesis", "topic", in.Topic.ID, "attempt", n, "error", perr)
		cur.violations = []Violation{{Check: CheckParse}}
		span.SetAttributes(attribute.Bool("parsed", false))
		return cur, nil
	}

	cur.resp = resp
	cur.doc = s.assemble(resp, in)
	cur.violations = Validate(cur.doc, targets)
	span.SetAttributes(attribute.Int("violations", len(cur.violations)))
	return cur, nil
}

// assemble builds the artifact from a parsed response. Quality fields are
// filled by finish.
func (s *Synthesizer) assemble(resp *response, in Input) *content.GeneratedTopicContent {
	n := &normalizer{ids: map[string]int{}}
	sections := n.sections(resp.Sections, 0)
	widgets := n.widgetList(resp.Widgets)

	doc := &content.GeneratedTopicContent{
		TopicID:  in.Topic.ID,
		Title:    in.Topic.Title,
		Sections: sections,
		Widgets:  widgets,
		Warnings: []string{},
		Metadata: content.Metadata{
			Complexity:         in.Plan.Complexity,
			EstimatedStudyTime: in.Plan.TimeAllocationMinutes,
			Strategy:           in.Plan.Strategy,
			SourceDocuments:    sourceDocuments(in.Topic, sections),
			GeneratedAt:        s.now().UTC(),
			Health:             ComputeHealth(sections, in.Plan.TargetWords),
		},
	}

	pm := content.PracticeMetrics{
		AppearsInSupuestos: resp.PracticeMetrics.AppearsInSupuestos,
		FormulasIncluded:   resp.PracticeMetrics.FormulasIncluded,
		ExamplesProvided:   resp.PracticeMetrics.ExamplesProvided,
		ResolutionGuidance: resp.PracticeMetrics.ResolutionGuidance,
		PracticeReadiness:  in.Report.PracticeReadiness,
	}
	if pm.AppearsInSupuestos == nil {
		pm.AppearsInSupuestos = []string{}
	}
	if r := resp.Synthesis.PracticeReadiness; r != nil && !math.IsNaN(*r) {
		v := math.Min(math.Max(*r, 0), 1)
		pm.ModelReportedReadiness = &v
	}
	doc.Metadata.PracticeMetrics = pm

	doc.Metadata.Synthesis = content.SynthesisStats{
		OriginalWords:    draftWords(in.Drafts),
		FinalWords:       doc.Metadata.Health.TotalWords,
		ConceptsIncluded: in.Report.Summary.Critical + in.Report.Summary.Important,
		ConceptsDropped:  in.Report.Summary.Droppable,
	}
	return doc
}

func (s *Synthesizer) finish(best *attempt, in Input) *content.GeneratedTopicContent {
	doc := best.doc
	doc.Metadata.Synthesis.Attempts = best.n
	doc.QualityStatus = content.QualityOK
	if len(best.violations) > 0 {
		doc.QualityStatus = content.QualityNeedsImprovement
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("Control de calidad no superado tras %d intentos", MaxAttempts))
		doc.Warnings = append(doc.Warnings, violationLines(best.violations)...)
	}

	pm := doc.Metadata.PracticeMetrics
	if pm.PracticeReadiness < ReadinessGoal {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("Practice readiness %.0f%% por debajo del objetivo %.0f%%", pm.PracticeReadiness*100, ReadinessGoal*100))
	}
	if m := pm.ModelReportedReadiness; m != nil && math.Abs(*m-pm.PracticeReadiness) > readinessDivergence {
		s.logger.Warn("model readiness diverges from curator",
			"topic", in.Topic.ID,
			"curator", pm.PracticeReadiness,
			"model", *m,
		)
	}
	return doc
}

func (s *Synthesizer) promptData(in Input, t Targets) prompt.SynthesisData {
	data := prompt.SynthesisData{
		Title:              in.Topic.Title,
		TimeMinutes:        in.Plan.TimeAllocationMinutes,
		Strategy:           in.Plan.Strategy,
		TargetWords:        t.Words,
		TargetSections:     t.Sections,
		MinSourcedSections: min(MinSourcedSections, max(t.Sections, 1)),
		MinCitations:       t.MinCitations,
		Readiness:          in.Report.PracticeReadiness,
		DraftWords:         draftWords(in.Drafts),
		Summary:            in.Report.Summary,
		Critical:           criticalLines(in.Report),
		Droppable:          droppableLines(in.Report),
	}
	for _, role := range content.ExpertRoles {
		for _, d := range in.Drafts {
			if d.Metadata.Source == role {
				data.Drafts = append(data.Drafts, prompt.Draft{
					Label:   draftLabels[role],
					Words:   content.CountWords(d.Content),
					Content: d.Content,
				})
			}
		}
	}
	return data
}

var draftLabels = map[content.Role]string{
	content.RoleTheoretical: "DRAFT TEÓRICO",
	content.RolePractical:   "DRAFT PRÁCTICO",
	content.RoleTechnical:   "DRAFT TÉCNICO",
}

func draftWords(drafts []content.ExpertOutput) int {
	n := 0
	for _, d := range drafts {
		n += content.CountWords(d.Content)
	}
	return n
}

func sourceDocuments(topic content.Topic, sections []content.TopicSection) []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(doc string) {
		if _, ok := seen[doc]; ok || doc == "" {
			return
		}
		seen[doc] = struct{}{}
		out = append(out, doc)
	}
	add(topic.Filename)
	for _, s := range content.Flatten(sections) {
		if s.SourceMetadata != nil {
			add(s.SourceMetadata.PrimaryDocument)
		}
	}
	return out
}

func violationLines(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.String())
	}
	return out
}
