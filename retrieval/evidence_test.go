package retrieval

import (
	"strings"
	"testing"

	"github.com/sweetpotato0/studygen/content"
)

func TestFormatEvidence(t *testing.T) {
	chunks := []content.EvidenceChunk{
		{SourceID: "db-4", Filename: "Ley.pdf", Fragment: "Artículo 25", Category: content.CategoryCore, ChunkIndex: 3, Confidence: 0.95},
		{SourceID: "db-9", Filename: "Guía.pdf", Fragment: strings.Repeat("x", 800), Category: content.CategorySupplementary, Confidence: 0.8},
		{SourceID: "db-10", Filename: "Otro.pdf", Fragment: "fuera"},
	}
	out := FormatEvidence(chunks, 2)

	if !strings.HasPrefix(out, "[1] (id:db-4, file:Ley.pdf, cat:CORE, chunk:3, conf:0.95)\nArtículo 25") {
		t.Fatalf("unexpected header: %q", out[:80])
	}
	if !strings.Contains(out, strings.Repeat("x", MaxFragmentRunes)+"...") {
		t.Fatal("long fragment should be truncated with an ellipsis")
	}
	if strings.Contains(out, "db-10") {
		t.Fatal("max should bound the number of blocks")
	}
}

func TestFilenames(t *testing.T) {
	got := Filenames([]content.EvidenceChunk{{Filename: "a"}, {Filename: ""}, {Filename: "b"}, {Filename: "a"}})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Filenames = %v", got)
	}
}

func TestCleanFragment(t *testing.T) {
	got := CleanFragment("<p>Artículo 1</p><ul><li>uno</li></ul>")
	if got != "Artículo 1\n\n- uno" {
		t.Fatalf("CleanFragment(html) = %q", got)
	}
	if got := CleanFragment("texto   con espacios"); got != "texto con espacios" {
		t.Fatalf("CleanFragment(text) = %q", got)
	}
}

func TestHTMLToTextTable(t *testing.T) {
	got, err := HTMLToText("<table><tr><th>Zona</th><th>Metros</th></tr><tr><td>Servidumbre</td><td>8</td></tr></table>")
	if err != nil {
		t.Fatalf("HTMLToText returned error: %v", err)
	}
	if got != "| Zona | Metros |\n| Servidumbre | 8 |" {
		t.Fatalf("HTMLToText = %q", got)
	}
}
