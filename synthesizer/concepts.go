package synthesizer

import (
	"fmt"
	"strings"

	"github.com/sweetpotato0/studygen/content"
)

const (
	maxCritical  = 10
	maxDroppable = 5
)

func criticalLines(r *content.CurationReport) []string {
	var out []string
	for _, c := range r.Critical(maxCritical) {
		out = append(out, fmt.Sprintf("- [%s] %s... (score: %.2f, supuestos: %s)",
			c.ID, cut(c.Text, 100), c.Criticality.Score, strings.Join(c.Criticality.AppearsInSupuestos, ", ")))
	}
	return out
}

func droppableLines(r *content.CurationReport) []string {
	var out []string
	for _, c := range r.Droppable(maxDroppable) {
		out = append(out, fmt.Sprintf("- %s... (score: %.2f) → ELIMINAR", cut(c.Text, 80), c.Criticality.Score))
	}
	return out
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
