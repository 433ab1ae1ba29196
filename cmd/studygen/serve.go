package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/studygen/mcp"
	"github.com/sweetpotato0/studygen/server"
)

var (
	serveAddr string
	serveMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API with server-sent progress events",
	Long: `Starts the HTTP API:

  POST   /api/topics/{id}/generate[?force=true]  stream a generation
  DELETE /api/topics/{id}/generate               cancel it
  GET    /api/topics/{id}/content                fetch the cached document

With --mcp the MCP tools are also served at /mcp.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP over streamable HTTP at /mcp")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	opts := []server.Option{
		server.WithDefaultUser(cfg.Pipeline.DefaultUser),
		server.WithIdleTimeout(cfg.ServerIdleTimeout()),
	}
	if serveMCP {
		tools := mcp.NewServer(a.orchestrator, a.catalog,
			mcp.WithDefaultUser(cfg.Pipeline.DefaultUser),
			mcp.WithVersion(version),
		)
		opts = append(opts, server.WithMount("/mcp", mcp.HTTPHandler(tools)))
	}
	srv := server.New(a.orchestrator, cfg.Server.Addr, opts...)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
