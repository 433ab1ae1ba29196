package retrieval

import (
	"fmt"
	"strings"

	"github.com/sweetpotato0/studygen/content"
)

// MaxFragmentRunes bounds each fragment embedded in a prompt.
const MaxFragmentRunes = 700

// FormatEvidence renders chunks as numbered, attributable prompt blocks.
func FormatEvidence(chunks []content.EvidenceChunk, max int) string {
	if max > 0 && len(chunks) > max {
		chunks = chunks[:max]
	}
	blocks := make([]string, 0, len(chunks))
	for i, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("[%d] (id:%s, file:%s, cat:%s, chunk:%d, conf:%.2f)\n%s",
			i+1, c.SourceID, c.Filename, c.Category, c.ChunkIndex, c.Confidence,
			content.Truncate(content.SanitizeText(c.Fragment), MaxFragmentRunes)))
	}
	return strings.Join(blocks, "\n\n")
}

// Filenames lists distinct source documents in first-seen order.
func Filenames(chunks []content.EvidenceChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if _, ok := seen[c.Filename]; ok || c.Filename == "" {
			continue
		}
		seen[c.Filename] = struct{}{}
		out = append(out, c.Filename)
	}
	return out
}
