package expert

import (
	"encoding/json"
	"strings"

	"github.com/sweetpotato0/studygen/content"
)

// definitionList accepts definitions as objects or as "term: definition"
// strings; models emit both.
type definitionList []content.Definition

func (d *definitionList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(definitionList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			term, def, _ := strings.Cut(s, ":")
			if term = strings.TrimSpace(term); term != "" {
				out = append(out, content.Definition{Term: term, Definition: strings.TrimSpace(def)})
			}
			continue
		}
		var obj content.Definition
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if strings.TrimSpace(obj.Term) != "" {
			out = append(out, obj)
		}
	}
	*d = out
	return nil
}

// stringList accepts either a list of strings or a single string.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one = strings.TrimSpace(one); one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	out := make(stringList, 0, len(many))
	for _, v := range many {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*s = out
	return nil
}

type sources struct {
	Chunks []content.SourceChunk `json:"chunks"`
}

type theoreticalResponse struct {
	Content     string         `json:"content"`
	References  stringList     `json:"references"`
	Definitions definitionList `json:"definitions"`
	Sources     sources        `json:"sources"`
	Confidence  *float64       `json:"confidence"`
	Gaps        stringList     `json:"gaps"`
}

type practicalResponse struct {
	Content         string            `json:"content"`
	ResolutionSteps stringList        `json:"resolutionSteps"`
	KeyFormulas     []content.Formula `json:"keyFormulas"`
	CommonMistakes  stringList        `json:"commonMistakes"`
	PracticalTips   stringList        `json:"practicalTips"`
	Supuestos       stringList        `json:"supuestos"`
	Confidence      *float64          `json:"confidence"`
	Gaps            stringList        `json:"gaps"`
}

type technicalResponse struct {
	Content     string            `json:"content"`
	Definitions definitionList    `json:"definitions"`
	Formulas    []content.Formula `json:"formulas"`
	Confidence  *float64          `json:"confidence"`
	Gaps        stringList        `json:"gaps"`
}

func confidenceOr(c *float64) float64 {
	if c == nil {
		return defaultConfidence
	}
	return *c
}

// headings lists markdown heading titles in order.
func headings(markdown string) []string {
	var out []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if title := strings.TrimSpace(strings.TrimLeft(line, "#")); title != "" {
			out = append(out, title)
		}
	}
	return out
}

func mergeRefs(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok || v == "" {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func formulaRefs(formulas []content.Formula) []string {
	var out []string
	for _, f := range formulas {
		if f.Reference != "" {
			out = append(out, f.Reference)
		}
	}
	return out
}
