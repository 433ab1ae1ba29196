package content

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces       = regexp.MustCompile(`[ \t\f\v]+`)
	reNewlines     = regexp.MustCompile(`\n{3,}`)
	reSlugStrip    = regexp.MustCompile(`[^a-z0-9]+`)
	reWorkedRef    = regexp.MustCompile(`(?i)\bsupuestos?\s+(?:n[º°o]\.?\s*)?(\d{1,3})\b`)
	reArticleCited = regexp.MustCompile(`(?i)\bart(?:[íi]culo|s?\.)\s*(\d+(?:\.\d+)?(?:\s*bis)?)`)
)

// CountWords counts whitespace separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// SanitizeText drops control characters, replacement runes and paragraph
// markers, then collapses runs of blanks. Newlines survive.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\u00A0':
			return ' '
		case r == '\uFFFD' || r == '\u00B6':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
	cleaned = reSpaces.ReplaceAllString(cleaned, " ")
	lines := strings.Split(cleaned, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	cleaned = reNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(cleaned)
}

// StripAccents removes combining marks after NFD decomposition.
func StripAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// FoldAccents lower-cases text and strips its accents.
func FoldAccents(text string) string {
	return strings.ToLower(StripAccents(text))
}

// Slugify turns a title into a stable lookup key.
func Slugify(text string) string {
	return strings.Trim(reSlugStrip.ReplaceAllString(FoldAccents(text), "-"), "-")
}

// Truncate cuts text to max runes, appending "..." when shortened.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}

// WorkedExampleRefs lists "Supuesto N" references in first-seen order.
func WorkedExampleRefs(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range reWorkedRef.FindAllStringSubmatch(text, -1) {
		ref := "Supuesto " + m[1]
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// ArticleCitations returns every inline article citation ("Art. 25",
// "artículo 7") in text, repeats included, normalized to "Art. N".
func ArticleCitations(text string) []string {
	matches := reArticleCited.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, "Art. "+strings.ToLower(strings.Join(strings.Fields(m[1]), " ")))
	}
	return out
}
