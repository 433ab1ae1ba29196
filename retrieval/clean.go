package retrieval

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sweetpotato0/studygen/content"
)

var reHTMLTag = regexp.MustCompile(`(?i)<(p|div|table|tr|td|li|ul|ol|br|h[1-6]|span|strong|em)[\s>/]`)

// CleanFragment normalizes a stored chunk for prompts. Fragments imported
// from web pages are reduced to text first.
func CleanFragment(raw string) string {
	text := raw
	if reHTMLTag.MatchString(raw) {
		if plain, err := HTMLToText(raw); err == nil && strings.TrimSpace(plain) != "" {
			text = plain
		}
	}
	return content.SanitizeText(text)
}

// HTMLToText keeps headings, paragraphs, list items and tables.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,table").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+text)
		case "h2":
			out = append(out, "## "+text)
		case "h3", "h4":
			out = append(out, "### "+text)
		case "li":
			out = append(out, "- "+text)
		case "table":
			out = append(out, tableText(s))
		default:
			if text != "" {
				out = append(out, text)
			}
		}
	})
	if len(out) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(out, "\n\n"), nil
}

func tableText(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(j int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}
