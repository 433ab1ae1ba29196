package inmemory

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/retrieval"
)

func seeded() *Store {
	s := New()
	s.Add(
		retrieval.Record{Content: "Artículo 1. Objeto de la ley", Filename: "Ley 9-1991 Carreteras.pdf", Category: content.CategoryCore},
		retrieval.Record{Content: "Artículo 25. Zona de servidumbre", Filename: "Ley 9-1991 Carreteras.pdf", Category: content.CategoryCore},
		retrieval.Record{Content: "Supuesto práctico de expropiación", Filename: "Supuesto 11.pdf", Category: content.CategoryPractice},
	)
	return s
}

func TestLookupFilters(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	rows, err := s.Lookup(ctx, retrieval.Lookup{FilenameLike: "ley 9-1991"})
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 1 {
		t.Fatalf("unexpected filename matches: %+v", rows)
	}

	rows, _ = s.Lookup(ctx, retrieval.Lookup{FilenameLike: "ley", ContentLike: "SERVIDUMBRE"})
	if len(rows) != 1 || rows[0].ID != 2 {
		t.Fatalf("unexpected combined matches: %+v", rows)
	}

	rows, _ = s.Lookup(ctx, retrieval.Lookup{Descending: true, Limit: 1})
	if len(rows) != 1 || rows[0].ID != 3 {
		t.Fatalf("descending limit should return the last record: %+v", rows)
	}
}

func TestLookupHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := seeded().Lookup(ctx, retrieval.Lookup{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLoadJSON(t *testing.T) {
	s := New()
	err := s.LoadJSON(strings.NewReader(`[{"id":7,"content":"x","filename":"Guía.pdf","category":"supplementary","chunk_index":2}]`))
	if err != nil {
		t.Fatalf("LoadJSON returned error: %v", err)
	}
	rows, _ := s.Lookup(context.Background(), retrieval.Lookup{})
	if len(rows) != 1 || rows[0].ID != 7 || rows[0].Category != content.CategorySupplementary || rows[0].ChunkIndex != 2 {
		t.Fatalf("unexpected record: %+v", rows)
	}
	s.Add(retrieval.Record{Content: "y"})
	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
	if err := s.LoadJSON(strings.NewReader("{")); err == nil {
		t.Fatal("expected decode error")
	}
}
