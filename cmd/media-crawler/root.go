package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	applog "github.com/NgnPhamGiaHuy/media-crawler/pkg/log"
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media-crawler",
		Short: "Crawl web pages and cache the images, videos and audio they reference",
		Long: `media-crawler crawls a web page (optionally following same-domain links up to a
depth), downloads every image, video and audio file it references into a
session-scoped disk cache, and records metadata and thumbnails for each file.

Configuration comes from defaults, an optional YAML file and environment
variables (CACHE_DIR, MAX_CRAWL_DEPTH, ... or MEDIA_CRAWLER_<KEY>).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (default: media-crawler.yaml if present)")
	cmd.PersistentFlags().String("loglevel", "", "Log level (debug, info, warn, error); overrides log_level")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMcpServerCmd())
	cmd.AddCommand(NewCacheCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads and validates the configuration named by --config.
// Validation warnings are returned for the caller to log.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, []string, error) {
	path, _ := cmd.Flags().GetString("config")
	appCfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return appCfg, warnings, nil
}

// setupLogger builds the logger for a command. Logs always go to stderr so
// stdout stays clean for JSON output and the MCP stdio transport.
func setupLogger(cmd *cobra.Command, appCfg *config.AppConfig, warnings []string) *logrus.Logger {
	level := appCfg.LogLevel
	if flagLevel, _ := cmd.Flags().GetString("loglevel"); flagLevel != "" {
		level = flagLevel
	}
	log := applog.NewWithOutput(cmd.ErrOrStderr(), level, appCfg.LogFormat)
	for _, w := range warnings {
		log.Warn(w)
	}
	return log
}

// setup is the common prologue of commands that touch the cache
func setup(cmd *cobra.Command) (*config.AppConfig, *logrus.Logger, *cache.Manager, error) {
	appCfg, warnings, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	log := setupLogger(cmd, appCfg, warnings)
	mgr, err := cache.NewManager(appCfg.CacheDir, logrus.NewEntry(log))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return appCfg, log, mgr, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. A second signal exits
// immediately.
func signalContext(parent context.Context, log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
			cancel()
		})
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
