package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
)

const (
	serverName    = "media-crawler"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig    *config.AppConfig
	Orchestrator *orchestrate.Orchestrator
	Transport    string // "stdio" or "sse"
	Port         int
	Logger       *logrus.Logger
}

// Server exposes crawling and the media cache as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	cache      *cache.Manager
	log        *logrus.Entry
	jobManager *JobManager
	jobsWG     sync.WaitGroup
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("Orchestrator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		cache:      cfg.Orchestrator.Cache(),
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	crawlMediaTool := mcp.NewTool("crawl_media",
		mcp.WithDescription("Start a background crawl of a URL that downloads every image, video and audio file it finds into a new cache session. Returns immediately with a job ID."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) URL to start crawling from"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Maximum link depth to follow (defaults to max_crawl_depth, 0 crawls only the given page)"),
		),
		mcp.WithString("previous_session_id",
			mcp.Description("Session to clear before the new one is created"),
		),
	)
	s.mcpServer.AddTool(crawlMediaTool, s.handleCrawlMedia)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by crawl_media"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or running crawl job. Media downloaded so far stays in its session."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by crawl_media"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	listMediaTool := mcp.NewTool("list_media",
		mcp.WithDescription("List the media downloaded into a cache session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Cache session ID (reported by get_job_status once a job completes)"),
		),
	)
	s.mcpServer.AddTool(listMediaTool, s.handleListMedia)

	getMediaTool := mcp.NewTool("get_media",
		mcp.WithDescription("Get one media record from a cache session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Cache session ID"),
		),
		mcp.WithString("media_id",
			mcp.Required(),
			mcp.Description("Media ID or cached filename"),
		),
	)
	s.mcpServer.AddTool(getMediaTool, s.handleGetMedia)

	cacheInfoTool := mcp.NewTool("cache_info",
		mcp.WithDescription("Report the cache location and size, optionally with details of one session"),
		mcp.WithString("session_id",
			mcp.Description("Session to describe (optional)"),
		),
	)
	s.mcpServer.AddTool(cacheInfoTool, s.handleCacheInfo)

	clearSessionTool := mcp.NewTool("clear_session",
		mcp.WithDescription("Delete a cache session and every file in it"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Cache session ID"),
		),
	)
	s.mcpServer.AddTool(clearSessionTool, s.handleClearSession)

	s.log.Infof("Registered %d MCP tools", 7)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs, waits for them to stop (bounded by ctx) and
// removes every cache session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.jobsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for crawl jobs to stop")
	}

	removed := s.cache.CleanExpiredSessions(0)
	s.log.Infof("Removed %d cache sessions on shutdown", removed)
	return ctx.Err()
}
