// Package server exposes the generation pipeline over HTTP. Progress is
// streamed as server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sweetpotato0/studygen/content"
	serrors "github.com/sweetpotato0/studygen/errors"
	"github.com/sweetpotato0/studygen/orchestrator"
	"github.com/sweetpotato0/studygen/pkg/logging"
)

// UserHeader carries the caller's user id. Requests without it use the
// configured default user.
const UserHeader = "X-User-ID"

const (
	defaultHeartbeat = 15 * time.Second
	eventBuffer      = 32
)

// Generator is the pipeline surface the server drives.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request, emit orchestrator.Emitter) (*content.GeneratedTopicContent, error)
	Cancel(topicID string) bool
	Cached(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultUser sets the user for requests without UserHeader.
func WithDefaultUser(user string) Option {
	return func(s *Server) { s.defaultUser = user }
}

// WithHeartbeat sets the interval of keep-alive comments on event streams.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithIdleTimeout sets the keep-alive idle timeout of the listener.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.httpServer.IdleTimeout = d
		}
	}
}

// WithMount serves h under pattern next to the topic endpoints.
func WithMount(pattern string, h http.Handler) Option {
	return func(s *Server) {
		if pattern != "" && h != nil {
			s.mounts[pattern] = h
		}
	}
}

// Server serves the topic endpoints.
type Server struct {
	gen         Generator
	logger      *slog.Logger
	defaultUser string
	heartbeat   time.Duration
	mounts      map[string]http.Handler
	httpServer  *http.Server
}

// New builds a server listening on addr.
func New(gen Generator, addr string, opts ...Option) *Server {
	s := &Server{
		gen:         gen,
		logger:      logging.WithComponent("server"),
		defaultUser: "anonymous",
		heartbeat:   defaultHeartbeat,
		mounts:      make(map[string]http.Handler),
	}
	// No write timeout: event streams last as long as a run.
	s.httpServer = &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer.Handler = s.Routes()
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/topics/{id}/generate", s.handleGenerate)
	mux.HandleFunc("DELETE /api/topics/{id}/generate", s.handleCancel)
	mux.HandleFunc("GET /api/topics/{id}/content", s.handleContent)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	for pattern, h := range s.mounts {
		mux.Handle(pattern, h)
	}
	return s.logRequests(mux)
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) user(r *http.Request) string {
	if u := r.Header.Get(UserHeader); u != "" {
		return u
	}
	return s.defaultUser
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	req := orchestrator.Request{
		UserID:  s.user(r),
		TopicID: r.PathValue("id"),
		Force:   force,
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The run writes into events; only this goroutine touches w.
	events := make(chan orchestrator.Event, eventBuffer)
	go func() {
		defer close(events)
		if _, err := s.gen.Generate(r.Context(), req, func(ev orchestrator.Event) { events <- ev }); err != nil {
			s.logger.Debug("generation ended with error", "topic", req.TopicID, "error", err)
		}
	}()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				s.logger.Debug("event write failed", "topic", req.TopicID, "error", err)
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"topicId":   id,
		"cancelled": s.gen.Cancel(id),
	})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	doc, err := s.gen.Cached(r.Context(), s.user(r), r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, doc)
	case errors.Is(err, serrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "no generated content for topic")
	default:
		s.logger.Error("cache read failed", "topic", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "cache unavailable")
	}
}

// writeEvent frames ev as one server-sent event.
func writeEvent(w http.ResponseWriter, ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
