// Package mcp exposes the study pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/orchestrator"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/render"
)

// Pipeline is the generation surface the tools call.
type Pipeline interface {
	Generate(ctx context.Context, req orchestrator.Request, emit orchestrator.Emitter) (*content.GeneratedTopicContent, error)
	Cancel(topicID string) bool
	Cached(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error)
}

// Topics lists the syllabus.
type Topics interface {
	Topics() []content.Topic
}

// Option configures the tool server.
type Option func(*tools)

// WithDefaultUser sets the cache owner for calls that do not name one.
func WithDefaultUser(user string) Option {
	return func(t *tools) {
		if user != "" {
			t.defaultUser = user
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *tools) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithVersion sets the advertised server version.
func WithVersion(v string) Option {
	return func(t *tools) {
		if v != "" {
			t.version = v
		}
	}
}

type tools struct {
	pipeline    Pipeline
	topics      Topics
	defaultUser string
	version     string
	logger      *slog.Logger
}

// NewServer builds an MCP server with the studygen tools registered.
func NewServer(p Pipeline, topics Topics, opts ...Option) *sdkmcp.Server {
	t := &tools{
		pipeline:    p,
		topics:      topics,
		defaultUser: "anonymous",
		version:     "0.1.0",
		logger:      logging.WithComponent("mcp"),
	}
	for _, opt := range opts {
		opt(t)
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "studygen",
		Title:   "Study content generator",
		Version: t.version,
	}, nil)

	t.addListTopics(server)
	t.addGenerate(server)
	t.addGetContent(server)
	t.addCancel(server)
	return server
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return server }, nil)
}

// ServeStdio runs server on stdin/stdout until the client disconnects.
func ServeStdio(ctx context.Context, server *sdkmcp.Server) error {
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}

func (t *tools) user(u string) string {
	if u = strings.TrimSpace(u); u != "" {
		return u
	}
	return t.defaultUser
}

func (t *tools) addListTopics(server *sdkmcp.Server) {
	type args struct {
		Query string `json:"query,omitempty" jsonschema:"Optional case-insensitive filter on title or group"`
	}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_topics",
		Description: "List syllabus topics that can be generated",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, a args) (*sdkmcp.CallToolResult, any, error) {
		q := strings.ToLower(strings.TrimSpace(a.Query))
		var lines []string
		for _, topic := range t.topics.Topics() {
			if q != "" && !strings.Contains(strings.ToLower(topic.Title+" "+topic.Group), q) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", topic.ID, topic.Title))
		}
		if len(lines) == 0 {
			return textResult("no topics match"), nil, nil
		}
		return textResult(strings.Join(lines, "\n")), nil, nil
	})
}

type generateSummary struct {
	TopicID       string                `json:"topicId"`
	QualityStatus content.QualityStatus `json:"qualityStatus"`
	TotalWords    int                   `json:"totalWords"`
	Sections      int                   `json:"sections"`
	Readiness     float64               `json:"practiceReadiness"`
	Warnings      []string              `json:"warnings"`
}

func (t *tools) addGenerate(server *sdkmcp.Server) {
	type args struct {
		TopicID string `json:"topic_id" jsonschema:"Topic identifier from list_topics"`
		UserID  string `json:"user_id,omitempty" jsonschema:"Cache owner, defaults to the server user"`
		Force   bool   `json:"force,omitempty" jsonschema:"Regenerate even when a cached document exists"`
	}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "generate_topic",
		Description: "Generate (or fetch from cache) the study document for a topic and return it as Markdown",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, a args) (*sdkmcp.CallToolResult, any, error) {
		if strings.TrimSpace(a.TopicID) == "" {
			return nil, nil, fmt.Errorf("topic_id is required")
		}
		emit := func(ev orchestrator.Event) {
			if ev.Type != orchestrator.EventState || ev.State.CurrentStep == nil {
				return
			}
			t.logger.Debug("generation progress", "topic", a.TopicID, "step", *ev.State.CurrentStep)
		}
		doc, err := t.pipeline.Generate(ctx, orchestrator.Request{
			UserID:  t.user(a.UserID),
			TopicID: a.TopicID,
			Force:   a.Force,
		}, emit)
		if err != nil {
			return nil, nil, fmt.Errorf("generate %s: %w", a.TopicID, err)
		}

		summary, err := json.Marshal(generateSummary{
			TopicID:       doc.TopicID,
			QualityStatus: doc.QualityStatus,
			TotalWords:    doc.Metadata.Health.TotalWords,
			Sections:      len(doc.Sections),
			Readiness:     doc.Metadata.PracticeMetrics.PracticeReadiness,
			Warnings:      doc.Warnings,
		})
		if err != nil {
			return nil, nil, err
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{
				&sdkmcp.TextContent{Text: string(summary)},
				&sdkmcp.TextContent{Text: render.Markdown(doc)},
			},
		}, nil, nil
	})
}

func (t *tools) addGetContent(server *sdkmcp.Server) {
	type args struct {
		TopicID string `json:"topic_id" jsonschema:"Topic identifier"`
		UserID  string `json:"user_id,omitempty" jsonschema:"Cache owner, defaults to the server user"`
		Format  string `json:"format,omitempty" jsonschema:"markdown (default), json or outline"`
	}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_content",
		Description: "Return the cached study document for a topic without generating it",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, a args) (*sdkmcp.CallToolResult, any, error) {
		doc, err := t.pipeline.Cached(ctx, t.user(a.UserID), a.TopicID)
		if err != nil {
			return nil, nil, fmt.Errorf("content for %s: %w", a.TopicID, err)
		}
		switch strings.ToLower(a.Format) {
		case "", "markdown", "md":
			return textResult(render.Markdown(doc)), nil, nil
		case "json":
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return nil, nil, err
			}
			return textResult(string(data)), nil, nil
		case "outline":
			var b strings.Builder
			for _, h := range render.Outline(render.Markdown(doc)) {
				fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", h.Level-1), h.Title)
			}
			return textResult(b.String()), nil, nil
		default:
			return nil, nil, fmt.Errorf("unsupported format %q (valid: markdown, json, outline)", a.Format)
		}
	})
}

func (t *tools) addCancel(server *sdkmcp.Server) {
	type args struct {
		TopicID string `json:"topic_id" jsonschema:"Topic whose generation should stop"`
	}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "cancel_generation",
		Description: "Stop any in-flight generation for a topic",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, a args) (*sdkmcp.CallToolResult, any, error) {
		if t.pipeline.Cancel(a.TopicID) {
			return textResult("cancelled " + a.TopicID), nil, nil
		}
		return textResult("nothing in flight for " + a.TopicID), nil, nil
	})
}

func textResult(s string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: s}}}
}
