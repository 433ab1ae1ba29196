// Package planner turns a topic and an optional study plan into generation
// targets. It never fails: missing data yields conservative defaults.
package planner

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sweetpotato0/studygen/content"
)

// Generation strategies, from terse to exhaustive.
const (
	StrategyCondensed = "condensed"
	StrategyBalanced  = "balanced"
	StrategyDetailed  = "detailed"
)

const (
	defaultMinutes        = 60
	statuteWords          = 1600
	statuteSections       = 7
	genericWords          = 1200
	genericSections       = 6
	detailedSections      = 8
	fallbackLengthWords   = 700
	minMatchingWordLength = 4
)

var reStatute = regexp.MustCompile(`(?i)ley|decreto|reglamento`)

// IsStatute reports whether text names a law, decree or regulation.
func IsStatute(text string) bool {
	return reStatute.MatchString(text)
}

// Planner computes strategic plans. It is immutable after New and safe for
// concurrent use.
type Planner struct {
	data     *PlanningData
	patterns PracticePatterns
}

// New creates a planner over data, which may be nil.
func New(data *PlanningData) *Planner {
	if data == nil {
		data = &PlanningData{}
	}
	patterns := DefaultPracticePatterns()
	if data.Practice != nil {
		patterns = *data.Practice
	}
	if patterns.TotalExamples <= 0 {
		patterns.TotalExamples = 15
	}
	return &Planner{data: data, patterns: patterns}
}

// PracticePatterns returns the worked-example analysis the planner uses.
func (p *Planner) PracticePatterns() PracticePatterns {
	return p.patterns
}

// Plan returns the targets for topic. now selects today's calendar slot when
// the topic has no explicit estimate.
func (p *Planner) Plan(topic content.Topic, now time.Time) content.StrategicPlan {
	statute := IsStatute(topic.Title) || IsStatute(topic.Filename)

	var plan content.StrategicPlan
	if est := p.findEstimate(topic.ID); est != nil {
		plan = p.fromEstimate(*est, statute)
	} else if est := p.findEstimate(topic.Title); est != nil {
		plan = p.fromEstimate(*est, statute)
	} else if entry := p.findScheduled(topic.ID, now); entry != nil {
		plan = p.fromSchedule(*entry, statute)
	} else {
		plan = p.defaultPlan(statute)
	}

	if plan.Complexity == content.ComplexityHigh && plan.TargetSections < detailedSections {
		plan.TargetSections = detailedSections
	}
	p.attachPractice(&plan, topic.Title)
	return plan
}

func (p *Planner) fromEstimate(est TopicEstimate, statute bool) content.StrategicPlan {
	statute = statute || IsStatute(est.TopicTitle)
	strategy := StrategyBalanced
	switch est.RecommendedContentLength {
	case LengthExtended:
		strategy = StrategyDetailed
	case LengthConcise:
		strategy = StrategyCondensed
	}

	words := TargetWords(est.RecommendedContentLength)
	sections := genericSections
	if strategy == StrategyDetailed {
		sections = detailedSections
	}
	if statute {
		words = max(words, statuteWords)
		sections = max(sections, statuteSections)
	}
	minutes := est.BaseStudyMinutes
	if minutes <= 0 {
		minutes = defaultMinutes
	}
	return content.StrategicPlan{
		TimeAllocationMinutes: minutes,
		TargetWords:           words,
		TargetSections:        sections,
		Complexity:            complexityOr(est.Complexity),
		Strategy:              strategy,
		StatuteHeavy:          statute,
		Rationale:             est.Rationale,
	}
}

func (p *Planner) fromSchedule(entry ScheduleEntry, statute bool) content.StrategicPlan {
	statute = statute || IsStatute(entry.TopicTitle)
	complexity := complexityOr(entry.Complexity)
	strategy := StrategyBalanced
	switch complexity {
	case content.ComplexityHigh:
		strategy = StrategyDetailed
	case content.ComplexityLow:
		strategy = StrategyCondensed
	}
	minutes := entry.DurationMinutes
	if minutes <= 0 {
		minutes = defaultMinutes
	}
	plan := content.StrategicPlan{
		TimeAllocationMinutes: minutes,
		TargetWords:           genericWords,
		TargetSections:        genericSections,
		Complexity:            complexity,
		Strategy:              strategy,
		StatuteHeavy:          statute,
		Rationale:             fmt.Sprintf("scheduled on %s as %q for %d min", entry.Date, entry.TopicTitle, minutes),
	}
	if statute {
		plan.TargetWords, plan.TargetSections = statuteWords, statuteSections
	}
	return plan
}

func (p *Planner) defaultPlan(statute bool) content.StrategicPlan {
	plan := content.StrategicPlan{
		TimeAllocationMinutes: defaultMinutes,
		TargetWords:           genericWords,
		TargetSections:        genericSections,
		Complexity:            content.ComplexityMedium,
		Strategy:              StrategyBalanced,
		StatuteHeavy:          statute,
		Rationale:             "no estimate for this topic, using defaults",
	}
	if p.data.Empty() {
		plan.Rationale = "no planning data loaded, using defaults"
	}
	if statute {
		plan.TargetWords, plan.TargetSections = statuteWords, statuteSections
		plan.Strategy = StrategyDetailed
	}
	return plan
}

// attachPractice adds worked-example references relevant to title.
func (p *Planner) attachPractice(plan *content.StrategicPlan, title string) {
	plan.PracticeExamples = []string{}
	for _, tf := range p.patterns.TopicFrequency {
		if topicMatch(tf.Topic, title) {
			plan.PracticeRelevance = tf.Percentage
			plan.PracticeExamples = append(plan.PracticeExamples, tf.Examples...)
			plan.Rationale = strings.TrimSpace(fmt.Sprintf("%s; appears in %d/%d worked examples",
				plan.Rationale, tf.Appearances, p.patterns.TotalExamples))
			break
		}
	}
	for _, c := range p.patterns.CommonCalculations {
		if relevant(c.Type, title) {
			plan.CommonCalculations = append(plan.CommonCalculations, c.Formula)
		}
	}
	for _, l := range p.patterns.CriticalLaws {
		if relevant(l.Law, title) {
			plan.CriticalLaws = append(plan.CriticalLaws, content.CriticalLaw{Law: l.Law, Articles: l.Articles})
		}
	}
}

// TargetWords maps a recommended content length to a word target.
func TargetWords(length ContentLength) int {
	switch length {
	case LengthExtended:
		return 1600
	case LengthStandard:
		return 1200
	case LengthConcise:
		return 800
	default:
		return fallbackLengthWords
	}
}

func (p *Planner) findEstimate(key string) *TopicEstimate {
	search := content.Slugify(key)
	if search == "" {
		return nil
	}
	ests := p.data.TopicTimeEstimates
	for i := range ests {
		if content.Slugify(ests[i].TopicID) == search {
			return &ests[i]
		}
	}
	for i := range ests {
		if id := content.Slugify(ests[i].TopicID); id != "" && (strings.Contains(id, search) || strings.Contains(search, id)) {
			return &ests[i]
		}
	}
	for i := range ests {
		if title := content.Slugify(ests[i].TopicTitle); title != "" && (strings.Contains(title, search) || strings.Contains(search, title)) {
			return &ests[i]
		}
	}
	return nil
}

func (p *Planner) findScheduled(topicID string, now time.Time) *ScheduleEntry {
	search := content.Slugify(topicID)
	if search == "" {
		return nil
	}
	today := now.Format(time.DateOnly)
	var first *ScheduleEntry
	for i := range p.data.DailySchedule {
		entry := &p.data.DailySchedule[i]
		id := content.Slugify(entry.TopicID)
		if id == "" || !(id == search || strings.Contains(id, search) || strings.Contains(search, id)) {
			continue
		}
		if entry.Date == today {
			return entry
		}
		if first == nil {
			first = entry
		}
	}
	return first
}

func complexityOr(c content.Complexity) content.Complexity {
	switch c {
	case content.ComplexityHigh, content.ComplexityMedium, content.ComplexityLow:
		return c
	}
	return content.ComplexityMedium
}

// topicMatch is a loose containment test on folded text, also accepting a
// shared word longer than four letters.
func topicMatch(a, b string) bool {
	a, b = content.FoldAccents(a), content.FoldAccents(b)
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	for _, w := range strings.Fields(a) {
		if len([]rune(w)) > minMatchingWordLength && strings.Contains(b, w) {
			return true
		}
	}
	for _, w := range strings.Fields(b) {
		if len([]rune(w)) > minMatchingWordLength && strings.Contains(a, w) {
			return true
		}
	}
	return false
}

// relevant reports whether text mentions any title word longer than three letters.
func relevant(text, title string) bool {
	text = content.FoldAccents(text)
	for _, w := range strings.Fields(content.FoldAccents(title)) {
		if len([]rune(w)) > 3 && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
