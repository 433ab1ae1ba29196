package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/orchestrator"
)

var (
	generateUser  string
	generateForce bool
	generateOut   string
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic-id]",
	Short: "Run the pipeline for one topic and write the document as JSON",
	Long: `Runs planning, drafting, curation and synthesis for a topic. Progress
is printed to stderr; the finished document goes to --out or stdout.

Example:
  studygen generate t-carreteras --force --out carreteras.json`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateUser, "user", "u", "", "cache owner (defaults to pipeline.default_user)")
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "regenerate even if a cached document exists")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "output file (default stdout)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	user := generateUser
	if user == "" {
		user = cfg.Pipeline.DefaultUser
	}
	progress := cmd.ErrOrStderr()
	doc, err := a.orchestrator.Generate(ctx, orchestrator.Request{
		UserID:  user,
		TopicID: args[0],
		Force:   generateForce,
	}, func(ev orchestrator.Event) { printEvent(progress, ev) })
	if err != nil {
		return err
	}
	return writeOutput(cmd, generateOut, func(w io.Writer) error { return writeJSON(w, doc) })
}

// printEvent writes one progress line per event.
func printEvent(w io.Writer, ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventState:
		if ev.State.CurrentStep == nil {
			fmt.Fprintf(w, "[%s]\n", ev.State.Status)
			return
		}
		step := ev.State.Step(*ev.State.CurrentStep)
		fmt.Fprintf(w, "[%s] %s %s\n", ev.State.Status, step.Role, step.Status)
	case orchestrator.EventDone:
		s := ev.Summary
		fmt.Fprintf(w, "done in %dms (cached=%t, retries=%d)\n", s.ElapsedMs, s.Cached, s.Retries)
		if ev.Content != nil && ev.Content.QualityStatus == content.QualityNeedsImprovement {
			for _, warning := range ev.Content.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warning)
			}
		}
	case orchestrator.EventError:
		fmt.Fprintf(w, "failed: %s (cancelled=%t)\n", ev.Error.Message, ev.Error.Cancelled)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
