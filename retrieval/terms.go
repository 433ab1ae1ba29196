package retrieval

import (
	"regexp"
	"strings"

	"github.com/sweetpotato0/studygen/content"
)

var stopWords = map[string]struct{}{
	"de": {}, "del": {}, "la": {}, "el": {}, "los": {}, "las": {}, "por": {}, "que": {},
	"para": {}, "con": {}, "en": {}, "una": {}, "uno": {}, "y": {}, "o": {},
}

var (
	reWordSplit  = regexp.MustCompile(`[\s,\-_]+`)
	reLegalRef   = regexp.MustCompile(`(?i)(?:ley|decreto|orden|real\s+decreto)\s*(\d+[-/]\d+|\d+)`)
	reLawName    = regexp.MustCompile(`(?i)ley\s*(\d+[-/]?\d*)`)
	reDecreeName = regexp.MustCompile(`(?i)decreto\s*(\d+[-/]?\d*)`)
	reNonAlnum   = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	reCommaSpace = regexp.MustCompile(`[,\s]+`)
	reRoadTopic  = regexp.MustCompile(`(?i)carreter|viari|autovi|autopis|servidumbre|afecci|dominio publico|edificaci`)
	reLaw91      = regexp.MustCompile(`9[-/_ ]?1991`)
	rePDFSuffix  = regexp.MustCompile(`(?i)\.pdf$`)
)

// categoryFilenameHints are filename fragments typical of each category.
var categoryFilenameHints = map[content.Category][]string{
	content.CategoryBOE:           {"Convocatoria", "Temario", "BOE", "BOC"},
	content.CategoryPractice:      {"Supuesto", "SUPUESTO", "ENUNCIADO", "SOLUCIÓN", "Solución", "Examen", "Simulacro"},
	content.CategoryCore:          {"Ley", "Decreto", "Reglamento", "Real Decreto", "Texto Refundido", "Orden"},
	content.CategorySupplementary: {"Guía", "Manual", "Resumen", "Instrucción", "Norma"},
}

var roadTerms = []string{
	"dominio público", "dominio publico", "servidumbre", "afección", "afeccion",
	"línea límite de edificación", "linea limite de edificacion", "plan regional",
	"información pública", "informacion publica", "utilidad pública", "utilidad publica",
	"urgente ocupación", "urgente ocupacion", "expropiación", "expropiacion",
	"dos meses", "publicidad", "infracciones", "sanciones",
}

var law91Terms = []string{
	"artículo 25", "articulo 25", "artículo 26", "articulo 26",
	"artículo 27", "articulo 27", "artículo 28", "articulo 28",
}

// Keywords returns accent-folded title words longer than three letters.
func Keywords(title string) []string {
	var out []string
	for _, w := range reWordSplit.Split(content.FoldAccents(title), -1) {
		if len([]rune(w)) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return uniq(out, 1)
}

// LegalRefs extracts statute numbers ("9/1991") with their spelling variants.
func LegalRefs(text string) []string {
	var out []string
	matches := reLegalRef.FindAllStringSubmatch(text, 4)
	for _, m := range matches {
		num := m[1]
		out = append(out,
			num,
			strings.Replace(num, "/", "-", 1),
			strings.Replace(num, "-", "/", 1),
			strings.NewReplacer("-", "_", "/", "_").Replace(num),
		)
	}
	return uniq(out, 1)
}

// FilenameVariants spells a document name the ways importers tend to store it.
func FilenameVariants(filename string) []string {
	base := rePDFSuffix.ReplaceAllString(filename, "")
	base = content.StripAccents(base)

	variants := []string{
		base,
		collapseUnderscores(reCommaSpace.ReplaceAllString(base, "_")),
		collapseUnderscores(reNonAlnum.ReplaceAllString(base, "_")),
	}
	if m := reLawName.FindStringSubmatch(base); m != nil {
		variants = append(variants, "Ley_"+strings.Replace(m[1], "/", "-", 1), "ley "+m[1])
	}
	if m := reDecreeName.FindStringSubmatch(base); m != nil {
		variants = append(variants, "Decreto_"+strings.Replace(m[1], "/", "-", 1))
	}
	variants = append(variants, Keywords(base)...)
	return uniq(variants, 3)
}

// DomainTerms adds vocabulary that lives deep inside road legislation, so
// lookups do not only return the opening articles of a statute.
func DomainTerms(contextText string) []string {
	folded := content.FoldAccents(contextText)
	var out []string
	if reRoadTopic.MatchString(folded) {
		out = append(out, roadTerms...)
	}
	if reLaw91.MatchString(folded) {
		out = append(out, law91Terms...)
	}
	return out
}

func sanitizeTerm(term string) string {
	return strings.TrimSpace(strings.NewReplacer("%", "", "_", "").Replace(term))
}

// uniq sanitizes terms, drops those shorter than minLen runes and keeps the
// first occurrence of each.
func uniq(terms []string, minLen int) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if len([]rune(t)) < minLen {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// likePatterns prepares terms for substring lookups: wildcards removed,
// at least three runes, no duplicates.
func likePatterns(terms []string, max int) []string {
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		clean = append(clean, sanitizeTerm(t))
	}
	out := uniq(clean, 3)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func collapseUnderscores(s string) string {
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
