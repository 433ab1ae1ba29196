package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweetpotato0/studygen/config"
	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/orchestrator"
)

func TestExportFromFile(t *testing.T) {
	doc := content.GeneratedTopicContent{
		TopicID:       "t-carreteras",
		Title:         "Ley de Carreteras",
		Sections:      []content.TopicSection{{ID: "marco", Title: "Marco legal", Content: content.SectionContent{Text: "Texto."}}},
		QualityStatus: content.QualityOK,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"export", "--from", path, "--format", "markdown"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(out.String(), "# Ley de Carreteras\n") || !strings.Contains(out.String(), "## Marco legal") {
		t.Fatalf("unexpected markdown:\n%s", out.String())
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	step := content.RoleCurator
	state := &orchestrator.State{
		Status:      orchestrator.StatusRunning,
		CurrentStep: &step,
		Steps:       []orchestrator.AgentStep{{Role: content.RoleCurator, Status: orchestrator.StepRunning}},
	}
	printEvent(&buf, orchestrator.Event{Type: orchestrator.EventState, State: state})
	printEvent(&buf, orchestrator.Event{Type: orchestrator.EventError, Error: &orchestrator.ErrorPayload{Message: "timeout", Cancelled: true}})

	want := "[running] curator running\nfailed: timeout (cancelled=true)\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestNewAppWiringErrors(t *testing.T) {
	badPlanning := filepath.Join(t.TempDir(), "planning.yaml")
	if err := os.WriteFile(badPlanning, []byte("topics: [unterminated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cases := map[string]func(*config.Config){
		"missing catalog":         func(c *config.Config) { c.Pipeline.CatalogPath = filepath.Join(t.TempDir(), "absent.yaml") },
		"malformed planning data": func(c *config.Config) { c.Pipeline.PlanningDataPath = badPlanning },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Telemetry.Disable = true
			mutate(cfg)
			a, err := newApp(context.Background(), cfg)
			if err == nil {
				t.Fatal("expected wiring error")
			}
			if a != nil {
				t.Fatalf("expected nil app on error, got %+v", a)
			}
		})
	}
}
