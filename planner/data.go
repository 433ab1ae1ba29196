package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	"gopkg.in/yaml.v3"
)

// EnvPlanningData holds a JSON PlanningData document when no file is configured.
const EnvPlanningData = "STUDYGEN_PLANNING_DATA"

// Source tells where planning data came from.
type Source string

const (
	SourceNone    Source = ""
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
)

// ContentLength is the planner's recommended document length.
type ContentLength string

const (
	LengthExtended ContentLength = "extended"
	LengthStandard ContentLength = "standard"
	LengthConcise  ContentLength = "concise"
)

// TopicEstimate is the externally planned effort for one topic.
type TopicEstimate struct {
	Group                    string             `json:"group" yaml:"group"`
	TopicTitle               string             `json:"topicTitle" yaml:"topicTitle"`
	TopicID                  string             `json:"topicId" yaml:"topicId"`
	Complexity               content.Complexity `json:"complexity" yaml:"complexity"`
	BaseStudyMinutes         int                `json:"baseStudyMinutes" yaml:"baseStudyMinutes"`
	RecommendedContentLength ContentLength      `json:"recommendedContentLength" yaml:"recommendedContentLength"`
	TotalPlannedMinutes      int                `json:"totalPlannedMinutes,omitempty" yaml:"totalPlannedMinutes"`
	Rationale                string             `json:"rationale,omitempty" yaml:"rationale"`
}

// ScheduleEntry is one day slot of the study calendar.
type ScheduleEntry struct {
	Date            string             `json:"date" yaml:"date"` // YYYY-MM-DD
	TopicTitle      string             `json:"topicTitle" yaml:"topicTitle"`
	TopicID         string             `json:"topicId" yaml:"topicId"`
	Type            string             `json:"type" yaml:"type"`
	DurationMinutes int                `json:"durationMinutes" yaml:"durationMinutes"`
	Complexity      content.Complexity `json:"complexity" yaml:"complexity"`
}

// TopicFrequency counts how often a subject appears in worked examples.
type TopicFrequency struct {
	Topic       string   `json:"topic" yaml:"topic"`
	Appearances int      `json:"appearances" yaml:"appearances"`
	Percentage  float64  `json:"percentage" yaml:"percentage"`
	Examples    []string `json:"examples" yaml:"examples"`
}

// Calculation is a recurring computation in worked examples.
type Calculation struct {
	Type      string `json:"type" yaml:"type"`
	Frequency int    `json:"frequency" yaml:"frequency"`
	Formula   string `json:"formula" yaml:"formula"`
}

// LawFrequency is a statute cited by worked-example solutions.
type LawFrequency struct {
	Law         string   `json:"law" yaml:"law"`
	Articles    []string `json:"articles" yaml:"articles"`
	Appearances int      `json:"appearances" yaml:"appearances"`
}

// PracticePatterns summarizes the corpus of worked examples.
type PracticePatterns struct {
	TotalExamples      int              `json:"totalExamples" yaml:"totalExamples"`
	TopicFrequency     []TopicFrequency `json:"topicFrequency" yaml:"topicFrequency"`
	CommonCalculations []Calculation    `json:"commonCalculations" yaml:"commonCalculations"`
	CriticalLaws       []LawFrequency   `json:"criticalLaws" yaml:"criticalLaws"`
	SolutionStructure  []string         `json:"solutionStructure" yaml:"solutionStructure"`
}

// PlanningData is the optional study plan the planner consults.
type PlanningData struct {
	StrategicAnalysis  string            `json:"strategic_analysis,omitempty" yaml:"strategic_analysis"`
	TopicTimeEstimates []TopicEstimate   `json:"topic_time_estimates" yaml:"topic_time_estimates"`
	DailySchedule      []ScheduleEntry   `json:"daily_schedule" yaml:"daily_schedule"`
	Practice           *PracticePatterns `json:"practice_patterns,omitempty" yaml:"practice_patterns"`
}

// Empty reports whether the data carries no plan at all.
func (d *PlanningData) Empty() bool {
	return d == nil || (len(d.TopicTimeEstimates) == 0 && len(d.DailySchedule) == 0)
}

// DefaultPracticePatterns is used when no worked-example analysis is supplied.
func DefaultPracticePatterns() PracticePatterns {
	return PracticePatterns{
		TotalExamples: 15,
		TopicFrequency: []TopicFrequency{
			{Topic: "Carreteras", Appearances: 8, Percentage: 0.53, Examples: []string{"Supuesto 1", "Supuesto 11"}},
			{Topic: "Costas", Appearances: 7, Percentage: 0.47, Examples: []string{"Supuesto 4", "Supuesto 9"}},
			{Topic: "Aguas", Appearances: 5, Percentage: 0.33, Examples: []string{"Supuesto 12"}},
			{Topic: "Expropiación", Appearances: 4, Percentage: 0.27, Examples: []string{"Supuesto 11"}},
		},
		CommonCalculations: []Calculation{
			{Type: "Zona protección carreteras", Frequency: 6, Formula: "zona = 50m (estatal), 25m (autonómica)"},
			{Type: "CBR y firmes", Frequency: 5, Formula: "espesor = f(CBR) según 6.1-IC"},
		},
		CriticalLaws: []LawFrequency{
			{Law: "Ley 9/1991 Carreteras", Articles: []string{"Art. 3", "Art. 5", "Art. 7"}, Appearances: 8},
			{Law: "Ley de Costas", Articles: []string{"DPMT", "Servidumbres"}, Appearances: 7},
		},
		SolutionStructure: []string{
			"1. Análisis normativo aplicable",
			"2. Identificación de parámetros",
			"3. Cálculos justificados",
			"4. Conclusiones y recomendaciones",
		},
	}
}

// LoadFile reads planning data from a YAML (.yaml, .yml) or JSON file.
func LoadFile(path string) (*PlanningData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read planning data: %w", err)
	}
	var data PlanningData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &data)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse planning data %s: %w", path, err)
	}
	return &data, nil
}

// Load resolves planning data from path, then from EnvPlanningData, then
// falls back to an empty plan.
func Load(path string) (*PlanningData, Source, error) {
	if path != "" {
		data, err := LoadFile(path)
		if err != nil {
			return nil, SourceNone, err
		}
		return data, SourceFile, nil
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPlanningData)); raw != "" {
		var data PlanningData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, SourceNone, fmt.Errorf("parse %s: %w", EnvPlanningData, err)
		}
		return &data, SourceEnv, nil
	}
	return &PlanningData{}, SourceDefault, nil
}
