package main

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/api"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/media"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/watch"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the periodic expiry sweeper",
		Long: `Serve exposes crawling and the media cache over HTTP.

Sessions idle for longer than cache_expiry are removed at startup and then
every sweep_interval. Every remaining session is removed on shutdown.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("host", "", "Listen host (default: host from config)")
	cmd.Flags().Int("port", 0, "Listen port (default: port from config)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	appCfg, log, mgr, err := setup(cmd)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		appCfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		appCfg.Port = port
	}
	interval, err := watch.ParseInterval(appCfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("sweep_interval: %w", err)
	}

	ctx, stop := signalContext(cmd.Context(), log)
	defer stop()

	entry := logrus.NewEntry(log)
	orch := orchestrate.NewOrchestrator(appCfg, mgr, media.ExecRunner{}, entry)
	server := api.NewServer(appCfg, orch, entry)
	sweeper := watch.NewSweeper(mgr, interval, appCfg.CacheExpiryDuration(), entry)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Run(ctx); err != nil {
			log.Errorf("Expiry sweeper stopped: %v", err)
		}
	}()

	serveErr := server.ListenAndServe(ctx)
	stop()
	wg.Wait()
	return serveErr
}
