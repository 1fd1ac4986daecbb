package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/mcp"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/media"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/watch"
)

const mcpShutdownTimeout = 15 * time.Second

// NewMcpServerCmd creates the mcp-server command
func NewMcpServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start an MCP (Model Context Protocol) server for AI tool integration",
		Long: `Start an MCP server exposing crawling and the media cache as tools.

Examples:
  # Start with stdio transport (for desktop MCP clients)
  media-crawler mcp-server

  # Start with SSE transport on port 8080
  media-crawler mcp-server --transport sse --port 8080

Available MCP Tools:
  crawl_media     Start a background crawl-and-download job
  get_job_status  Check the status of a job
  cancel_job      Cancel a pending or running job
  list_media      List the media of a cache session
  get_media       Get one media record
  cache_info      Report cache location and size
  clear_session   Delete a cache session

Expired sessions are swept at startup and every sweep_interval. Every
session is removed on shutdown.`,
		Args: cobra.NoArgs,
		RunE: runMcpServerCmd,
	}

	cmd.Flags().String("transport", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().Int("port", 8080, "HTTP port (for sse transport)")

	return cmd
}

func runMcpServerCmd(cmd *cobra.Command, _ []string) error {
	appCfg, log, mgr, err := setup(cmd)
	if err != nil {
		return err
	}
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	interval, err := watch.ParseInterval(appCfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("sweep_interval: %w", err)
	}

	entry := logrus.NewEntry(log)
	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:    appCfg,
		Orchestrator: orchestrate.NewOrchestrator(appCfg, mgr, media.ExecRunner{}, entry),
		Transport:    transport,
		Port:         port,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("error creating MCP server: %w", err)
	}

	ctx, stop := signalContext(cmd.Context(), log)
	defer stop()

	// The sweeper's first pass is the startup sweep
	sweeper := watch.NewSweeper(mgr, interval, appCfg.CacheExpiryDuration(), entry)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Run(ctx); err != nil {
			log.Errorf("Expiry sweeper stopped: %v", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		log.Infof("Starting MCP server (transport: %s)", transport)
		runErr <- server.Run()
	}()

	var serveErr error
	select {
	case err := <-runErr:
		if err != nil {
			serveErr = fmt.Errorf("MCP server error: %w", err)
		}
	case <-ctx.Done():
	}

	stop()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), mcpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("MCP shutdown: %v", err)
	}
	return serveErr
}
