// Command studygen generates citation-grounded study documents for syllabus
// topics, over HTTP, MCP or directly from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/studygen/config"
	"github.com/sweetpotato0/studygen/pkg/logging"
)

var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "studygen",
	Short: "Generate study documents from a syllabus and a document library",
	Long: `studygen plans a topic, drafts it with three concurrent experts,
curates the drafts and synthesizes a single document under a quality gate.

Finished documents are cached per user and topic.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("STUDYGEN_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd, generateCmd, exportCmd, mcpCmd)
}

// loadConfig reads and validates the configuration and installs the
// process logger. Logs go to stderr so stdout stays free for output.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.SetLogger(logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level))
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
