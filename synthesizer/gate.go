package synthesizer

import (
	"fmt"
	"math"

	"github.com/sweetpotato0/studygen/content"
)

// Gate thresholds.
const (
	WordRatio           = 0.85
	ThinSectionWords    = 120
	MaxThinSections     = 2
	MinSourcedSections  = 3
	StatuteMinCitations = 10
)

// Check names one quality-gate rule.
type Check string

const (
	CheckSections  Check = "sections"
	CheckWords     Check = "words"
	CheckThin      Check = "thin_sections"
	CheckSourced   Check = "sourced_sections"
	CheckCitations Check = "citations"
	CheckParse     Check = "parse"
)

// Violation is a failed check with the measured and required values.
type Violation struct {
	Check Check `json:"check"`
	Want  int   `json:"want"`
	Got   int   `json:"got"`
}

// String renders the violation as repair feedback for the model.
func (v Violation) String() string {
	switch v.Check {
	case CheckSections:
		return fmt.Sprintf("Hay %d secciones; se requieren al menos %d secciones h2.", v.Got, v.Want)
	case CheckWords:
		return fmt.Sprintf("El texto suma %d palabras; se requieren al menos %d.", v.Got, v.Want)
	case CheckThin:
		return fmt.Sprintf("%d secciones tienen menos de %d palabras; se permiten como máximo %d.", v.Got, ThinSectionWords, v.Want)
	case CheckSourced:
		return fmt.Sprintf("Solo %d secciones incluyen sourceMetadata.chunks; se requieren %d.", v.Got, v.Want)
	case CheckCitations:
		return fmt.Sprintf("Hay %d citas de artículos; se requieren al menos %d.", v.Got, v.Want)
	case CheckParse:
		return "La respuesta no era un objeto JSON válido con el campo \"sections\"."
	}
	return fmt.Sprintf("%s: %d < %d", v.Check, v.Got, v.Want)
}

// Targets are the structural goals a synthesis must meet.
type Targets struct {
	Sections     int
	Words        int
	MinCitations int // zero disables the citation check
}

// TargetsFor derives gate targets from the plan.
func TargetsFor(plan content.StrategicPlan) Targets {
	t := Targets{Sections: plan.TargetSections, Words: plan.TargetWords}
	if plan.StatuteHeavy {
		t.MinCitations = StatuteMinCitations
	}
	return t
}

// MinWords is the word floor the gate enforces.
func (t Targets) MinWords() int {
	return int(math.Ceil(float64(t.Words)*WordRatio - 1e-9))
}

// Validate applies the quality gate to normalized sections. It has no side
// effects; an empty result means the document passes.
func Validate(doc *content.GeneratedTopicContent, t Targets) []Violation {
	var sections []content.TopicSection
	if doc != nil {
		sections = doc.Sections
	}
	var out []Violation

	if n := len(sections); n < t.Sections {
		out = append(out, Violation{Check: CheckSections, Want: t.Sections, Got: n})
	}

	words := 0
	for _, s := range content.Flatten(sections) {
		words += content.CountWords(s.Content.Text)
	}
	if floor := t.MinWords(); words < floor {
		out = append(out, Violation{Check: CheckWords, Want: floor, Got: words})
	}

	thin, sourced := 0, 0
	for _, s := range sections {
		if subtreeWords(s) < ThinSectionWords {
			thin++
		}
		if subtreeSourced(s) {
			sourced++
		}
	}
	if thin > MaxThinSections {
		out = append(out, Violation{Check: CheckThin, Want: MaxThinSections, Got: thin})
	}
	if want := min(MinSourcedSections, len(sections)); sourced < want {
		out = append(out, Violation{Check: CheckSourced, Want: want, Got: sourced})
	}

	if t.MinCitations > 0 {
		if n := countCitations(sections); n < t.MinCitations {
			out = append(out, Violation{Check: CheckCitations, Want: t.MinCitations, Got: n})
		}
	}
	return out
}

func subtreeWords(s content.TopicSection) int {
	n := content.CountWords(s.Content.Text)
	for _, c := range s.Children {
		n += subtreeWords(c)
	}
	return n
}

func subtreeSourced(s content.TopicSection) bool {
	if s.HasSourceChunks() {
		return true
	}
	for _, c := range s.Children {
		if subtreeSourced(c) {
			return true
		}
	}
	return false
}

func countCitations(sections []content.TopicSection) int {
	n := 0
	for _, s := range content.Flatten(sections) {
		n += len(content.ArticleCitations(s.Content.Text))
	}
	return n
}
