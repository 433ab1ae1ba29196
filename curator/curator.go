// Package curator scores the concepts found in the expert drafts and decides
// which of them the synthesis must keep. It is deterministic and never calls
// the completion backend.
package curator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/pkg/telemetry"
	"github.com/sweetpotato0/studygen/planner"
	"go.opentelemetry.io/otel/attribute"
)

// Score weights and bucket thresholds.
const (
	WeightFrequency     = 0.5
	WeightCentrality    = 0.3
	WeightApplicability = 0.2

	KeepFullAbove  = 0.8
	KeepSummaryMin = 0.2

	// DefaultMaxConcepts caps extraction per request.
	DefaultMaxConcepts = 60
)

// Concept kinds.
const (
	KindDefinition = "definition"
	KindFormula    = "formula"
	KindArticle    = "article"
	KindTerm       = "term"
	KindHeading    = "heading"
)

// extraction order; the first kind to claim an id keeps it.
var kindOrder = []string{KindDefinition, KindFormula, KindArticle, KindTerm, KindHeading}

var reBold = regexp.MustCompile(`\*\*([^*\n]{3,80})\*\*`)

// Option configures a Curator.
type Option func(*Curator)

// WithPatterns supplies worked-example statistics used to boost statutes
// that recur in solutions.
func WithPatterns(p planner.PracticePatterns) Option {
	return func(c *Curator) { c.patterns = &p }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Curator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxConcepts overrides DefaultMaxConcepts.
func WithMaxConcepts(n int) Option {
	return func(c *Curator) {
		if n > 0 {
			c.maxConcepts = n
		}
	}
}

// Curator builds curation reports.
type Curator struct {
	patterns    *planner.PracticePatterns
	maxConcepts int
	logger      *slog.Logger
}

// New returns a Curator.
func New(opts ...Option) *Curator {
	c := &Curator{
		maxConcepts: DefaultMaxConcepts,
		logger:      logging.WithComponent(string(content.RoleCurator)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type candidate struct {
	id        string
	text      string
	kind      string
	source    content.Role
	appearsIn []string
}

// Curate scores every concept of the three drafts. Degraded drafts contribute
// no concepts. It fails only when the draft set is incomplete.
func (c *Curator) Curate(ctx context.Context, drafts []content.ExpertOutput) (report *content.CurationReport, err error) {
	_, span := telemetry.Start(ctx, "curator.curate", attribute.Int("drafts", len(drafts)))
	defer func() { telemetry.End(span, err) }()

	byRole, err := indexDrafts(drafts)
	if err != nil {
		return nil, err
	}

	practical := byRole[content.RolePractical]
	practiceText := ""
	if !practical.Degraded {
		practiceText = practical.Content
	}
	ex := newExamples(practiceText, practical)
	foldedPractice := content.FoldAccents(practiceText)
	practiceArticles := setOf(content.ArticleCitations(practiceText))

	cands := c.extract(byRole)
	report = &content.CurationReport{Concepts: make([]content.Concept, 0, len(cands))}
	for _, cand := range cands {
		var appears []string
		if cand.kind == KindArticle {
			appears = ex.mentionsArticle(cand.text)
		} else {
			appears = ex.mentions(cand.text)
		}
		appears = mergeRefs(appears, cand.appearsIn)
		freq := ex.frequency(appears)
		if cand.kind == KindArticle {
			freq = math.Max(freq, c.lawFrequency(cand.text))
		}
		centrality := centralityOf(cand.kind, cand.source)

		applicability := 0.0
		if cand.kind == KindArticle {
			if _, ok := practiceArticles[cand.text]; ok {
				applicability = 1
			}
		} else if foldedPractice != "" && strings.Contains(foldedPractice, content.FoldAccents(cand.text)) {
			applicability = 1
		}

		score := round3(WeightFrequency*freq + WeightCentrality*centrality + WeightApplicability*applicability)
		if appears == nil {
			appears = []string{}
		}
		report.Concepts = append(report.Concepts, content.Concept{
			ID:     cand.id,
			Text:   cand.text,
			Source: cand.source,
			Kind:   cand.kind,
			Criticality: content.Criticality{
				Score:                 score,
				ExamFrequency:         round3(freq),
				TheoreticalImportance: centrality,
				PracticeRelevance:     applicability,
				CalculationRequired:   cand.kind == KindFormula,
				AppearsInSupuestos:    appears,
			},
			Recommendation: Bucket(score),
			Covered:        applicability == 1,
		})
	}

	sort.SliceStable(report.Concepts, func(i, j int) bool {
		a, b := report.Concepts[i], report.Concepts[j]
		if a.Criticality.Score != b.Criticality.Score {
			return a.Criticality.Score > b.Criticality.Score
		}
		return a.ID < b.ID
	})
	report.Summary = summarize(report.Concepts)
	report.PracticeReadiness = Readiness(report.Concepts)

	span.SetAttributes(
		attribute.Int("concepts", report.Summary.Total),
		attribute.Float64("practice_readiness", report.PracticeReadiness),
	)
	c.logger.Info("curation complete",
		"concepts", report.Summary.Total,
		"critical", report.Summary.Critical,
		"important", report.Summary.Important,
		"droppable", report.Summary.Droppable,
		"practice_readiness", report.PracticeReadiness,
	)
	return report, nil
}

// Bucket maps a score to its recommendation.
func Bucket(score float64) content.Recommendation {
	switch {
	case score > KeepFullAbove:
		return content.KeepFull
	case score >= KeepSummaryMin:
		return content.KeepSummary
	}
	return content.Drop
}

// Readiness is the score-weighted share of kept concepts that the practical
// draft covers. Zero when nothing is kept.
func Readiness(concepts []content.Concept) float64 {
	var total, covered float64
	for _, c := range concepts {
		if c.Recommendation == content.Drop {
			continue
		}
		total += c.Criticality.Score
		if c.Covered {
			covered += c.Criticality.Score
		}
	}
	if total == 0 {
		return 0
	}
	return round3(covered / total)
}

func indexDrafts(drafts []content.ExpertOutput) (map[content.Role]content.ExpertOutput, error) {
	if len(drafts) != len(content.ExpertRoles) {
		return nil, fmt.Errorf("curate: expected %d drafts, got %d: %w", len(content.ExpertRoles), len(drafts), serrors.ErrInvalidInput)
	}
	byRole := make(map[content.Role]content.ExpertOutput, len(drafts))
	for _, d := range drafts {
		byRole[d.Metadata.Source] = d
	}
	for _, role := range content.ExpertRoles {
		if _, ok := byRole[role]; !ok {
			return nil, fmt.Errorf("curate: missing %s draft: %w", role, serrors.ErrInvalidInput)
		}
	}
	return byRole, nil
}

func (c *Curator) extract(byRole map[content.Role]content.ExpertOutput) []candidate {
	seen := map[string]struct{}{}
	var out []candidate
	add := func(text, kind string, role content.Role, appearsIn []string) {
		text = strings.TrimSpace(text)
		id := content.Slugify(text)
		if id == "" || len(out) >= c.maxConcepts {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, candidate{id: id, text: text, kind: kind, source: role, appearsIn: appearsIn})
	}

	for _, kind := range kindOrder {
		for _, role := range content.ExpertRoles {
			d := byRole[role]
			if d.Degraded {
				continue
			}
			switch kind {
			case KindDefinition:
				for _, def := range d.Metadata.Definitions {
					add(def.Term, kind, role, nil)
				}
			case KindFormula:
				for _, f := range d.Metadata.Formulas {
					add(f.Name, kind, role, content.WorkedExampleRefs(strings.Join(f.AppearsIn, " ")))
				}
			case KindArticle:
				for _, a := range content.ArticleCitations(d.Content) {
					add(a, kind, role, nil)
				}
			case KindTerm:
				for _, m := range reBold.FindAllStringSubmatch(d.Content, -1) {
					add(m[1], kind, role, nil)
				}
			case KindHeading:
				for _, h := range headingTitles(d.Content) {
					add(h, kind, role, nil)
				}
			}
		}
	}
	return out
}

func (c *Curator) lawFrequency(article string) float64 {
	if c.patterns == nil || c.patterns.TotalExamples <= 0 {
		return 0
	}
	best := 0.0
	for _, law := range c.patterns.CriticalLaws {
		for _, a := range law.Articles {
			for _, cited := range content.ArticleCitations(a) {
				if cited == article {
					best = math.Max(best, float64(law.Appearances)/float64(c.patterns.TotalExamples))
				}
			}
		}
	}
	return math.Min(best, 1)
}

func centralityOf(kind string, source content.Role) float64 {
	switch kind {
	case KindDefinition, KindFormula, KindArticle:
		if source == content.RolePractical {
			return 0.8
		}
		return 1
	case KindTerm:
		return 0.5
	}
	return 0.3
}

func summarize(concepts []content.Concept) content.CurationSummary {
	s := content.CurationSummary{Total: len(concepts)}
	for _, c := range concepts {
		switch c.Recommendation {
		case content.KeepFull:
			s.Critical++
		case content.KeepSummary:
			s.Important++
		default:
			s.Droppable++
		}
	}
	return s
}

func headingTitles(markdown string) []string {
	var out []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func setOf(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, v := range list {
		out[v] = struct{}{}
	}
	return out
}

func mergeRefs(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := setOf(a)
	out := append([]string(nil), a...)
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
