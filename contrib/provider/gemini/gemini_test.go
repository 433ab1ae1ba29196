package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), DefaultConfig("")); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"content":`), genai.Text(`"x"}`)}},
	}}}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"content":"x"}` {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestResponseTextErrors(t *testing.T) {
	cases := []*genai.GenerateContentResponse{
		nil,
		{},
		{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}}},
	}
	for i, resp := range cases {
		if _, err := responseText(resp); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
