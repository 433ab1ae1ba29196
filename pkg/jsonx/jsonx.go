// Package jsonx pulls a JSON object out of free-form model output.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage names the extraction step that failed.
type Stage string

const (
	StageEmpty     Stage = "empty"     // nothing left after trimming
	StageNoObject  Stage = "no_object" // no {...} span found
	StageUnmarshal Stage = "unmarshal" // json.Unmarshal rejected the candidate
)

// ParseError is returned when raw text cannot be turned into the target value.
type ParseError struct {
	Stage   Stage
	Snippet string // first characters of the candidate, for logs
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jsonx: %s: %v (near %q)", e.Stage, e.Err, e.Snippet)
	}
	return fmt.Sprintf("jsonx: %s (near %q)", e.Stage, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extract strips markdown fences, trims to the outermost object and decodes it
// into T. Every failure is reported as *ParseError.
func Extract[T any](raw string) (*T, error) {
	candidate, err := Object(raw)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, &ParseError{Stage: StageUnmarshal, Snippet: snippet(candidate), Err: err}
	}
	return &out, nil
}

// Object returns the outermost {...} span of raw after fence removal.
func Object(raw string) (string, error) {
	clean := StripFences(raw)
	if clean == "" {
		return "", &ParseError{Stage: StageEmpty}
	}
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return "", &ParseError{Stage: StageNoObject, Snippet: snippet(clean)}
	}
	return clean[start : end+1], nil
}

// StripFences removes ``` and ```json fences wherever they appear.
func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, fence := range []string{"```json", "```JSON", "```"} {
		trimmed = strings.ReplaceAll(trimmed, fence, "")
	}
	return strings.TrimSpace(trimmed)
}

func snippet(s string) string {
	const max = 80
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
