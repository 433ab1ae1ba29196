package synthesizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sweetpotato0/studygen/content"
)

// response is the synthesis JSON as models actually emit it.
type response struct {
	Sections        []rawSection     `json:"sections"`
	Widgets         []content.Widget `json:"widgets"`
	Synthesis       synthesisStats   `json:"synthesis"`
	PracticeMetrics practiceMetrics  `json:"practiceMetrics"`
}

type synthesisStats struct {
	OriginalWords     int      `json:"originalWords"`
	FinalWords        int      `json:"finalWords"`
	ConceptsIncluded  int      `json:"conceptsIncluded"`
	ConceptsDropped   int      `json:"conceptsDropped"`
	PracticeReadiness *float64 `json:"practiceReadiness"`
}

type practiceMetrics struct {
	AppearsInSupuestos []string `json:"appearsInSupuestos"`
	FormulasIncluded   int      `json:"formulasIncluded"`
	ExamplesProvided   int      `json:"examplesProvided"`
	ResolutionGuidance bool     `json:"resolutionGuidance"`
}

type rawSection struct {
	ID             string                  `json:"id"`
	Title          string                  `json:"title"`
	Level          string                  `json:"level"`
	SourceType     string                  `json:"sourceType"`
	Content        sectionBody             `json:"content"`
	SourceMetadata *content.SourceMetadata `json:"sourceMetadata"`
	PracticalUse   string                  `json:"practicalUse"`
	SourceExpert   string                  `json:"sourceExpert"`
	Children       []rawSection            `json:"children"`
}

// sectionBody accepts {"text": ..., "widgets": [...]} or a bare string.
type sectionBody struct {
	Text    string           `json:"text"`
	Widgets []content.Widget `json:"widgets"`
}

func (b *sectionBody) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Text = s
		return nil
	}
	type plain sectionBody
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = sectionBody(p)
	return nil
}

// normalizer coerces model sections into canonical TopicSections.
type normalizer struct {
	ids     map[string]int
	widgets int
}

func (n *normalizer) sections(raw []rawSection, depth int) []content.TopicSection {
	out := make([]content.TopicSection, 0, len(raw))
	for _, r := range raw {
		if s, ok := n.section(r, depth); ok {
			out = append(out, s)
		}
	}
	return out
}

// section returns false for leaves that end up without text.
func (n *normalizer) section(r rawSection, depth int) (content.TopicSection, bool) {
	children := n.sections(r.Children, depth+1)
	text := content.SanitizeText(r.Content.Text)
	if text == "" && len(children) == 0 {
		return content.TopicSection{}, false
	}
	title := content.SanitizeText(r.Title)
	if title == "" {
		title = firstLine(text)
	}
	s := content.TopicSection{
		ID:             n.id(r.ID, title),
		Title:          title,
		Level:          level(r.Level, depth),
		SourceType:     sourceType(r.SourceType),
		Content:        content.SectionContent{Text: text, Widgets: n.widgetList(r.Content.Widgets)},
		SourceMetadata: sourceMetadata(r.SourceMetadata),
		PracticalUse:   content.SanitizeText(r.PracticalUse),
		SourceExpert:   strings.TrimSpace(r.SourceExpert),
		Children:       children,
	}
	if len(s.Children) == 0 {
		s.Children = nil
	}
	return s, true
}

func (n *normalizer) id(raw, title string) string {
	base := content.Slugify(raw)
	if base == "" {
		base = content.Slugify(title)
	}
	if base == "" {
		base = "seccion"
	}
	n.ids[base]++
	if c := n.ids[base]; c > 1 {
		return fmt.Sprintf("%s-%d", base, c)
	}
	return base
}

// widgetList drops unknown widget types and assigns missing ids.
func (n *normalizer) widgetList(in []content.Widget) []content.Widget {
	out := make([]content.Widget, 0, len(in))
	for _, w := range in {
		w.Type = content.WidgetType(strings.ToLower(strings.TrimSpace(string(w.Type))))
		if !w.Type.Known() {
			continue
		}
		n.widgets++
		if w.ID == "" {
			w.ID = fmt.Sprintf("widget-%d", n.widgets)
		}
		w.Title = content.SanitizeText(w.Title)
		w.ContextFrame = content.SanitizeText(w.ContextFrame)
		out = append(out, w)
	}
	return out
}

func level(raw string, depth int) content.Level {
	switch l := content.Level(strings.ToLower(strings.TrimSpace(raw))); l {
	case content.LevelH1, content.LevelH2, content.LevelH3:
		return l
	}
	if depth > 0 {
		return content.LevelH3
	}
	return content.LevelH2
}

func sourceType(raw string) content.SourceType {
	switch t := content.SourceType(strings.ToLower(strings.TrimSpace(raw))); t {
	case content.SourceLibrary, content.SourceAugmented, content.SourceMixed:
		return t
	}
	return content.SourceMixed
}

func sourceMetadata(m *content.SourceMetadata) *content.SourceMetadata {
	if m == nil {
		return nil
	}
	out := &content.SourceMetadata{
		PrimaryDocument: strings.TrimSpace(m.PrimaryDocument),
		Articles:        m.Articles,
		Chunks:          make([]content.SourceChunk, 0, len(m.Chunks)),
	}
	for _, c := range m.Chunks {
		c.OriginalText = content.SanitizeText(c.OriginalText)
		if c.OriginalText == "" && c.ChunkID == "" {
			continue
		}
		c.Confidence = math.Min(math.Max(c.Confidence, 0), 1)
		out.Chunks = append(out.Chunks, c)
	}
	if out.PrimaryDocument == "" && len(out.Chunks) == 0 && len(out.Articles) == 0 {
		return nil
	}
	return out
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return content.Truncate(strings.TrimSpace(strings.TrimLeft(line, "#")), 80)
}

// ComputeHealth derives document metrics from normalized sections. Words
// count every node's text; sections are the top-level entries.
func ComputeHealth(sections []content.TopicSection, targetWords int) content.Health {
	h := content.Health{
		MinWordsPerSection: ThinSectionWords,
		TotalSections:      len(sections),
	}
	for _, s := range content.Flatten(sections) {
		h.TotalWords += content.CountWords(s.Content.Text)
	}
	for _, s := range sections {
		if subtreeWords(s) < ThinSectionWords {
			h.SectionsBelowThreshold++
		}
	}
	if h.TotalSections > 0 {
		h.AvgWordsPerSection = int(math.Round(float64(h.TotalWords) / float64(h.TotalSections)))
	}
	h.WordGoalMet = h.TotalWords >= Targets{Words: targetWords}.MinWords()
	return h
}
