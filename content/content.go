// Package content holds the data shared by every stage of the generation
// pipeline: topics, evidence, plans, drafts, curation and the final artifact.
package content

import (
	"encoding/json"
	"sort"
	"time"
)

// Topic is immutable syllabus reference data.
type Topic struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Filename string `json:"filename,omitempty" yaml:"filename"` // originating document
	Group    string `json:"group,omitempty" yaml:"group"`       // parent syllabus group
}

// Category classifies source documents in the retrieval store.
type Category string

const (
	CategoryCore          Category = "CORE"
	CategorySupplementary Category = "SUPPLEMENTARY"
	CategoryPractice      Category = "PRACTICE"
	CategoryBOE           Category = "BOE"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCore, CategorySupplementary, CategoryPractice, CategoryBOE:
		return true
	}
	return false
}

// EvidenceChunk is a retrieved fragment with provenance.
type EvidenceChunk struct {
	SourceID   string   `json:"sourceId"`
	Filename   string   `json:"filename"`
	Fragment   string   `json:"fragment"`
	Category   Category `json:"category"`
	ChunkIndex int      `json:"chunkIndex"`
	Confidence float64  `json:"confidence"`
}

// Complexity is the planner's difficulty tier for a topic.
type Complexity string

const (
	ComplexityHigh   Complexity = "High"
	ComplexityMedium Complexity = "Medium"
	ComplexityLow    Complexity = "Low"
)

// CriticalLaw is a statute that recurs in worked examples.
type CriticalLaw struct {
	Law      string   `json:"law" yaml:"law"`
	Articles []string `json:"articles,omitempty" yaml:"articles"`
}

// StrategicPlan is computed once per request and read-only afterwards.
type StrategicPlan struct {
	TimeAllocationMinutes int           `json:"timeAllocationMinutes"`
	TargetWords           int           `json:"targetWords"`
	TargetSections        int           `json:"targetSections"`
	Complexity            Complexity    `json:"complexity"`
	Strategy              string        `json:"strategy"`          // executive_summary .. exhaustive
	StatuteHeavy          bool          `json:"statuteHeavy"`      // title names a law, decree or regulation
	PracticeRelevance     float64       `json:"practiceRelevance"` // share of worked examples touching the topic
	PracticeExamples      []string      `json:"practiceExamples"`  // worked-example identifiers
	CommonCalculations    []string      `json:"commonCalculations,omitempty"`
	CriticalLaws          []CriticalLaw `json:"criticalLaws,omitempty"` // laws recurring in worked examples
	Rationale             string        `json:"rationale,omitempty"`
}

// Role identifies a pipeline step.
type Role string

const (
	RolePlanner     Role = "planner"
	RoleTheoretical Role = "expert-teorico"
	RolePractical   Role = "expert-practical"
	RoleTechnical   Role = "expert-tecnico"
	RoleCurator     Role = "curator"
	RoleStrategist  Role = "strategist"
)

// Roles lists the steps in execution order.
var Roles = []Role{RolePlanner, RoleTheoretical, RolePractical, RoleTechnical, RoleCurator, RoleStrategist}

// ExpertRoles lists the concurrently drafted roles.
var ExpertRoles = []Role{RoleTheoretical, RolePractical, RoleTechnical}

// Definition is a term extracted by an expert.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Source     string `json:"source,omitempty"`
}

// Formula is a calculation an expert found in its evidence.
type Formula struct {
	Name       string   `json:"name"`
	Expression string   `json:"formula"`
	Reference  string   `json:"reference,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
	AppearsIn  []string `json:"appearsIn,omitempty"`
	Example    string   `json:"example,omitempty"`
}

// ExpertMetadata carries role-specific structure next to the draft text.
type ExpertMetadata struct {
	Definitions     []Definition  `json:"definitions,omitempty"`
	Formulas        []Formula     `json:"formulas,omitempty"`
	Sections        []string      `json:"sections,omitempty"`
	ResolutionSteps []string      `json:"resolutionSteps,omitempty"`
	CommonMistakes  []string      `json:"commonMistakes,omitempty"`
	PracticalTips   []string      `json:"practicalTips,omitempty"`
	WorkedExamples  []string      `json:"workedExamples,omitempty"` // worked examples cited by the draft
	Excerpts        []SourceChunk `json:"excerpts,omitempty"`
	EvidenceCount   int           `json:"evidenceCount"`
	WordCount       int           `json:"wordCount"`
	Source          Role          `json:"source"`
}

// ExpertOutput is one expert's draft. It is never mutated once returned.
type ExpertOutput struct {
	Content    string         `json:"content"`
	References []string       `json:"references"`
	Confidence float64        `json:"confidence"`
	Gaps       []string       `json:"gaps"`
	Metadata   ExpertMetadata `json:"metadata"`
	Degraded   bool           `json:"degraded,omitempty"` // stub produced instead of a real draft
	Error      string         `json:"error,omitempty"`
}

// Recommendation buckets a concept for synthesis.
type Recommendation string

const (
	KeepFull    Recommendation = "KEEP_FULL"
	KeepSummary Recommendation = "KEEP_SUMMARY"
	Drop        Recommendation = "DROP"
)

// Criticality explains a concept score.
type Criticality struct {
	Score                 float64  `json:"score"`
	ExamFrequency         float64  `json:"examFrequency"`
	TheoreticalImportance float64  `json:"theoreticalImportance"`
	PracticeRelevance     float64  `json:"practiceRelevance"`
	CalculationRequired   bool     `json:"calculationRequired"`
	AppearsInSupuestos    []string `json:"appearsInSupuestos"`
}

// Concept is a scored unit of draft content.
type Concept struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	Source         Role           `json:"source"`
	Kind           string         `json:"kind"` // heading, term, formula, article
	Criticality    Criticality    `json:"criticality"`
	Recommendation Recommendation `json:"recommendation"`
	Covered        bool           `json:"covered"` // present in the practical draft
}

// CurationSummary counts concepts per bucket.
type CurationSummary struct {
	Total     int `json:"totalConcepts"`
	Critical  int `json:"critical"`
	Important int `json:"important"`
	Droppable int `json:"droppable"`
}

// CurationReport is derived deterministically from the three drafts.
type CurationReport struct {
	Concepts          []Concept       `json:"concepts"`
	Summary           CurationSummary `json:"summary"`
	PracticeReadiness float64         `json:"practiceReadiness"`
}

// Critical returns up to n KEEP_FULL concepts, highest score first.
func (r *CurationReport) Critical(n int) []Concept {
	return r.top(KeepFull, n)
}

// Droppable returns up to n DROP concepts, lowest score first.
func (r *CurationReport) Droppable(n int) []Concept {
	out := r.top(Drop, -1)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Criticality.Score < out[j].Criticality.Score
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (r *CurationReport) top(rec Recommendation, n int) []Concept {
	if r == nil {
		return nil
	}
	var out []Concept
	for _, c := range r.Concepts {
		if c.Recommendation == rec {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Criticality.Score > out[j].Criticality.Score
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Level is a section heading depth.
type Level string

const (
	LevelH1 Level = "h1"
	LevelH2 Level = "h2"
	LevelH3 Level = "h3"
)

// SourceType records where section text came from.
type SourceType string

const (
	SourceLibrary   SourceType = "library"
	SourceAugmented SourceType = "augmented"
	SourceMixed     SourceType = "mixed"
)

// SourceChunk ties a section to a literal piece of evidence.
type SourceChunk struct {
	ChunkID      string  `json:"chunkId"`
	Article      string  `json:"article,omitempty"`
	Page         *int    `json:"page,omitempty"`
	OriginalText string  `json:"originalText"`
	Confidence   float64 `json:"confidence"`
}

// SourceMetadata lists the evidence backing a section.
type SourceMetadata struct {
	PrimaryDocument string        `json:"primaryDocument"`
	Articles        []string      `json:"articles,omitempty"`
	Chunks          []SourceChunk `json:"chunks"`
}

// WidgetType names an interactive widget kind.
type WidgetType string

const (
	WidgetFormula      WidgetType = "formula"
	WidgetInfographic  WidgetType = "infografia"
	WidgetMnemonic     WidgetType = "mnemonic_generator"
	WidgetCasePractice WidgetType = "case_practice"
	WidgetQuiz         WidgetType = "quiz"
	WidgetDiagram      WidgetType = "diagram"
	WidgetTimeline     WidgetType = "timeline"
	WidgetConceptMap   WidgetType = "concept_map"
	WidgetComparison   WidgetType = "comparison_table"
	WidgetFlashcards   WidgetType = "flashcards"
)

var widgetTypes = map[WidgetType]struct{}{
	WidgetFormula: {}, WidgetInfographic: {}, WidgetMnemonic: {}, WidgetCasePractice: {},
	WidgetQuiz: {}, WidgetDiagram: {}, WidgetTimeline: {}, WidgetConceptMap: {},
	WidgetComparison: {}, WidgetFlashcards: {},
}

// Known reports whether the widget type can be rendered.
func (w WidgetType) Known() bool {
	_, ok := widgetTypes[w]
	return ok
}

// Widget is a placeholder for an interactive element.
type Widget struct {
	ID           string          `json:"id"`
	Type         WidgetType      `json:"type"`
	Title        string          `json:"title"`
	ContextFrame string          `json:"contextFrame,omitempty"`
	ConceptTopic string          `json:"conceptTopic,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
}

// SectionContent is the body of a section.
type SectionContent struct {
	Text    string   `json:"text"`
	Widgets []Widget `json:"widgets"`
}

// TopicSection is one node of the document tree.
type TopicSection struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Level          Level           `json:"level"`
	SourceType     SourceType      `json:"sourceType"`
	Content        SectionContent  `json:"content"`
	SourceMetadata *SourceMetadata `json:"sourceMetadata,omitempty"`
	PracticalUse   string          `json:"practicalUse,omitempty"`
	SourceExpert   string          `json:"sourceExpert,omitempty"`
	Children       []TopicSection  `json:"children,omitempty"`
}

// HasSourceChunks reports whether the section carries attributed evidence.
func (s TopicSection) HasSourceChunks() bool {
	return s.SourceMetadata != nil && len(s.SourceMetadata.Chunks) > 0
}

// Flatten returns sections depth-first, parents before children.
func Flatten(sections []TopicSection) []TopicSection {
	var out []TopicSection
	var walk func([]TopicSection)
	walk = func(list []TopicSection) {
		for _, s := range list {
			out = append(out, s)
			walk(s.Children)
		}
	}
	walk(sections)
	return out
}

// Health is computed from normalized sections, never from model output.
type Health struct {
	TotalWords             int  `json:"totalWords"`
	AvgWordsPerSection     int  `json:"avgWordsPerSection"`
	SectionsBelowThreshold int  `json:"sectionsBelowThreshold"`
	MinWordsPerSection     int  `json:"minWordsPerSection"`
	TotalSections          int  `json:"totalSections"`
	WordGoalMet            bool `json:"wordGoalMet"`
}

// PracticeMetrics summarizes how the document serves worked examples.
type PracticeMetrics struct {
	AppearsInSupuestos []string `json:"appearsInSupuestos"`
	FormulasIncluded   int      `json:"formulasIncluded"`
	ExamplesProvided   int      `json:"examplesProvided"`
	ResolutionGuidance bool     `json:"resolutionGuidance"`
	// PracticeReadiness is the curator's score.
	PracticeReadiness float64 `json:"practiceReadiness"`
	// ModelReportedReadiness is the synthesis model's own estimate; advisory only.
	ModelReportedReadiness *float64 `json:"modelReportedReadiness,omitempty"`
}

// SynthesisStats records how the drafts were condensed.
type SynthesisStats struct {
	OriginalWords    int `json:"originalWords"`
	FinalWords       int `json:"finalWords"`
	ConceptsIncluded int `json:"conceptsIncluded"`
	ConceptsDropped  int `json:"conceptsDropped"`
	Attempts         int `json:"attempts"`
}

// Metadata describes the final artifact.
type Metadata struct {
	Complexity         Complexity      `json:"complexity"`
	EstimatedStudyTime int             `json:"estimatedStudyTime"` // minutes
	Strategy           string          `json:"strategy,omitempty"`
	SourceDocuments    []string        `json:"sourceDocuments"`
	GeneratedAt        time.Time       `json:"generatedAt"`
	Health             Health          `json:"health"`
	PracticeMetrics    PracticeMetrics `json:"practiceMetrics"`
	Synthesis          SynthesisStats  `json:"synthesis"`
}

// QualityStatus is the outcome of the synthesis quality gate.
type QualityStatus string

const (
	QualityOK               QualityStatus = "ok"
	QualityNeedsImprovement QualityStatus = "needs_improvement"
)

// GeneratedTopicContent is the artifact persisted per (user, topic).
type GeneratedTopicContent struct {
	TopicID       string         `json:"topicId"`
	Title         string         `json:"title"`
	Metadata      Metadata       `json:"metadata"`
	Sections      []TopicSection `json:"sections"`
	Widgets       []Widget       `json:"widgets"`
	QualityStatus QualityStatus  `json:"qualityStatus"`
	Warnings      []string       `json:"warnings"`
}
