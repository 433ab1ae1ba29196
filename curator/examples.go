package curator

import (
	"strings"

	"github.com/sweetpotato0/studygen/content"
)

// examples indexes the worked examples the practical draft refers to.
type examples struct {
	all        map[string]struct{}
	paragraphs []paragraph
}

type paragraph struct {
	folded   string
	articles map[string]struct{}
	refs     []string
}

func newExamples(text string, practical content.ExpertOutput) examples {
	ex := examples{all: map[string]struct{}{}}
	if text == "" {
		return ex
	}
	for _, ref := range practical.Metadata.WorkedExamples {
		ex.all[ref] = struct{}{}
	}
	for _, f := range practical.Metadata.Formulas {
		for _, ref := range content.WorkedExampleRefs(strings.Join(f.AppearsIn, " ")) {
			ex.all[ref] = struct{}{}
		}
	}
	for _, block := range strings.Split(text, "\n\n") {
		refs := content.WorkedExampleRefs(block)
		if len(refs) == 0 {
			continue
		}
		for _, ref := range refs {
			ex.all[ref] = struct{}{}
		}
		ex.paragraphs = append(ex.paragraphs, paragraph{
			folded:   content.FoldAccents(block),
			articles: setOf(content.ArticleCitations(block)),
			refs:     refs,
		})
	}
	return ex
}

// mentions lists the worked examples cited next to concept text.
func (e examples) mentions(text string) []string {
	needle := content.FoldAccents(text)
	if needle == "" {
		return nil
	}
	var out []string
	for _, p := range e.paragraphs {
		if strings.Contains(p.folded, needle) {
			out = mergeRefs(out, p.refs)
		}
	}
	return out
}

// mentionsArticle is mentions for a normalized "Art. N" citation.
func (e examples) mentionsArticle(article string) []string {
	var out []string
	for _, p := range e.paragraphs {
		if _, ok := p.articles[article]; ok {
			out = mergeRefs(out, p.refs)
		}
	}
	return out
}

// frequency is the share of known worked examples in refs.
func (e examples) frequency(refs []string) float64 {
	if len(e.all) == 0 || len(refs) == 0 {
		return 0
	}
	n := 0
	for _, r := range refs {
		if _, ok := e.all[r]; ok {
			n++
		}
	}
	return float64(n) / float64(len(e.all))
}
