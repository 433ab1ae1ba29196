// Package render exports a generated study document as Markdown or HTML.
package render

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// maxDepth is the deepest Markdown heading emitted for sections.
const maxDepth = 6

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Markdown renders doc with the title as the only level-one heading and
// nested sections one level deeper than their parent.
func Markdown(doc *content.GeneratedTopicContent) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)

	if doc.QualityStatus == content.QualityNeedsImprovement && len(doc.Warnings) > 0 {
		b.WriteString("> **Revisión pendiente**\n")
		for _, w := range doc.Warnings {
			fmt.Fprintf(&b, "> - %s\n", w)
		}
		b.WriteString("\n")
	}

	for _, s := range doc.Sections {
		writeSection(&b, s, 2)
	}

	if len(doc.Widgets) > 0 {
		b.WriteString("## Recursos interactivos\n\n")
		for _, w := range doc.Widgets {
			fmt.Fprintf(&b, "- %s (%s)\n", widgetTitle(w), w.Type)
		}
		b.WriteString("\n")
	}

	if len(doc.Metadata.SourceDocuments) > 0 {
		b.WriteString("## Fuentes\n\n")
		for _, d := range doc.Metadata.SourceDocuments {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, s content.TopicSection, depth int) {
	if depth > maxDepth {
		depth = maxDepth
	}
	if s.Title != "" {
		fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", depth), s.Title)
	}
	if body := strings.TrimSpace(s.Content.Text); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	for _, w := range s.Content.Widgets {
		fmt.Fprintf(b, "*%s: %s*\n\n", w.Type, widgetTitle(w))
	}
	if s.PracticalUse != "" {
		fmt.Fprintf(b, "**Aplicación práctica:** %s\n\n", s.PracticalUse)
	}
	if src := s.SourceMetadata; src != nil && src.PrimaryDocument != "" {
		line := "Fuente: " + src.PrimaryDocument
		if len(src.Articles) > 0 {
			line += " (" + strings.Join(src.Articles, ", ") + ")"
		}
		fmt.Fprintf(b, "*%s*\n\n", line)
	}
	for _, c := range s.Children {
		writeSection(b, c, depth+1)
	}
}

func widgetTitle(w content.Widget) string {
	if w.Title != "" {
		return w.Title
	}
	return w.ID
}

// HTML renders doc as a standalone HTML page.
func HTML(doc *content.GeneratedTopicContent) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(doc)), &body); err != nil {
		return nil, fmt.Errorf("render: convert markdown: %w", err)
	}
	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html lang=\"es\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		stdhtml.EscapeString(doc.Title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// Heading is one entry of a document outline.
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// Outline lists the headings of a Markdown text in document order.
func Outline(markdown string) []Heading {
	source := []byte(markdown)
	root := md.Parser().Parse(text.NewReader(source))

	var out []Heading
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		out = append(out, Heading{Level: h.Level, Title: strings.TrimSpace(string(h.Text(source)))})
		return ast.WalkSkipChildren, nil
	})
	return out
}
