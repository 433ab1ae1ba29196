package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/render"
)

var (
	exportUser   string
	exportFormat string
	exportFrom   string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export [topic-id]",
	Short: "Render a generated document as Markdown, HTML or JSON",
	Long: `Reads a document from the cache (or from a JSON file with --from)
and renders it.

Examples:
  studygen export t-carreteras --format html --out carreteras.html
  studygen export --from carreteras.json --format markdown`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "cache owner (defaults to pipeline.default_user)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "markdown, html or json")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "read the document from a JSON file instead of the cache")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(cmd, args)
	if err != nil {
		return err
	}
	var write func(io.Writer) error
	switch exportFormat {
	case "markdown", "md":
		write = func(w io.Writer) error {
			_, err := io.WriteString(w, render.Markdown(doc))
			return err
		}
	case "html":
		page, err := render.HTML(doc)
		if err != nil {
			return err
		}
		write = func(w io.Writer) error {
			_, err := w.Write(page)
			return err
		}
	case "json":
		write = func(w io.Writer) error { return writeJSON(w, doc) }
	default:
		return fmt.Errorf("unsupported format %q", exportFormat)
	}
	return writeOutput(cmd, exportOut, write)
}

func loadDocument(cmd *cobra.Command, args []string) (*content.GeneratedTopicContent, error) {
	if exportFrom != "" {
		f, err := os.Open(exportFrom)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return cache.Decode(data)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("topic id or --from is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close(ctx)

	user := exportUser
	if user == "" {
		user = cfg.Pipeline.DefaultUser
	}
	return a.orchestrator.Cached(ctx, user, args[0])
}
