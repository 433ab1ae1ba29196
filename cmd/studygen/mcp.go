package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/studygen/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as MCP tools over stdio or streamable HTTP",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol; the stdout trace exporter would corrupt it.
	if mcpHTTPAddr == "" && cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Disable = true
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	tools := mcp.NewServer(a.orchestrator, a.catalog,
		mcp.WithDefaultUser(cfg.Pipeline.DefaultUser),
		mcp.WithVersion(version),
	)
	if mcpHTTPAddr == "" {
		return mcp.ServeStdio(ctx, tools)
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.HTTPHandler(tools))
	srv := &http.Server{Addr: mcpHTTPAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	a.logger.Info("serving MCP", "addr", mcpHTTPAddr, "path", "/mcp")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
