package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/orchestrator"
	"github.com/sweetpotato0/studygen/pkg/logging"
)

type fakePipeline struct {
	docs      map[string]*content.GeneratedTopicContent
	requests  []orchestrator.Request
	cancelled []string
}

func (f *fakePipeline) Generate(_ context.Context, req orchestrator.Request, emit orchestrator.Emitter) (*content.GeneratedTopicContent, error) {
	f.requests = append(f.requests, req)
	step := content.RolePlanner
	emit(orchestrator.Event{Type: orchestrator.EventState, State: &orchestrator.State{CurrentStep: &step}})
	doc := &content.GeneratedTopicContent{
		TopicID:       req.TopicID,
		Title:         "Ley de Carreteras",
		Sections:      []content.TopicSection{{ID: "marco", Title: "Marco legal", Content: content.SectionContent{Text: "Texto."}}},
		QualityStatus: content.QualityOK,
		Metadata:      content.Metadata{Health: content.Health{TotalWords: 1620}},
	}
	f.docs[req.UserID+"/"+req.TopicID] = doc
	return doc, nil
}

func (f *fakePipeline) Cancel(topicID string) bool {
	f.cancelled = append(f.cancelled, topicID)
	return false
}

func (f *fakePipeline) Cached(_ context.Context, userID, topicID string) (*content.GeneratedTopicContent, error) {
	if doc, ok := f.docs[userID+"/"+topicID]; ok {
		return doc, nil
	}
	return nil, serrors.ErrNotFound
}

type topicList []content.Topic

func (l topicList) Topics() []content.Topic { return l }

func connect(t *testing.T, p Pipeline) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(p, topicList{
		{ID: "t-carreteras", Title: "Ley de Carreteras", Group: "Legislación"},
		{ID: "t-topografia", Title: "Topografía", Group: "Técnica"},
	}, WithLogger(logging.Discard()), WithDefaultUser("u1"))

	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

func call(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return res
}

func text(res *sdkmcp.CallToolResult, i int) string {
	return res.Content[i].(*sdkmcp.TextContent).Text
}

func TestListsTools(t *testing.T) {
	cs := connect(t, &fakePipeline{docs: map[string]*content.GeneratedTopicContent{}})
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_topics", "generate_topic", "get_content", "cancel_generation"} {
		if !names[want] {
			t.Fatalf("tool %s not registered: %v", want, names)
		}
	}
}

func TestListTopicsFilters(t *testing.T) {
	cs := connect(t, &fakePipeline{docs: map[string]*content.GeneratedTopicContent{}})

	if got := text(call(t, cs, "list_topics", map[string]any{}), 0); strings.Count(got, "\n") != 1 {
		t.Fatalf("expected two topics, got %q", got)
	}
	if got := text(call(t, cs, "list_topics", map[string]any{"query": "legisl"}), 0); got != "t-carreteras: Ley de Carreteras" {
		t.Fatalf("unexpected filter result %q", got)
	}
}

func TestGenerateThenGetContent(t *testing.T) {
	p := &fakePipeline{docs: map[string]*content.GeneratedTopicContent{}}
	cs := connect(t, p)

	res := call(t, cs, "generate_topic", map[string]any{"topic_id": "t-carreteras", "force": true})
	if res.IsError {
		t.Fatalf("generate failed: %s", text(res, 0))
	}
	var summary generateSummary
	if err := json.Unmarshal([]byte(text(res, 0)), &summary); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalWords != 1620 || summary.Sections != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !strings.HasPrefix(text(res, 1), "# Ley de Carreteras") {
		t.Fatalf("expected markdown body, got %q", text(res, 1))
	}
	if len(p.requests) != 1 || p.requests[0].UserID != "u1" || !p.requests[0].Force {
		t.Fatalf("unexpected requests %+v", p.requests)
	}

	outline := text(call(t, cs, "get_content", map[string]any{"topic_id": "t-carreteras", "format": "outline"}), 0)
	if outline != "Ley de Carreteras\n  Marco legal\n" {
		t.Fatalf("unexpected outline %q", outline)
	}
}

func TestGetContentMissing(t *testing.T) {
	cs := connect(t, &fakePipeline{docs: map[string]*content.GeneratedTopicContent{}})
	res := call(t, cs, "get_content", map[string]any{"topic_id": "t-carreteras"})
	if !res.IsError {
		t.Fatal("expected tool error for missing content")
	}
}

func TestCancelTool(t *testing.T) {
	p := &fakePipeline{docs: map[string]*content.GeneratedTopicContent{}}
	cs := connect(t, p)
	got := text(call(t, cs, "cancel_generation", map[string]any{"topic_id": "t-carreteras"}), 0)
	if got != "nothing in flight for t-carreteras" {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(p.cancelled) != 1 {
		t.Fatalf("expected one cancel call, got %v", p.cancelled)
	}
}
