package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/media"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/orchestrate"
)

// NewCrawlCmd creates the crawl command
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl URLs, download their media and print the result as JSON",
		Long: `Crawl starts at each URL, follows same-domain links up to --depth, downloads
every media file found into a new cache session and prints the result envelope.

Several URLs are crawled in parallel, each into its own session, sharing the
configured request concurrency.

Sessions are removed when the command exits unless --keep is given.

Examples:
  media-crawler crawl https://example.com/gallery
  media-crawler crawl --depth 1 --keep https://example.com
  media-crawler crawl https://a.example.com https://b.example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("depth", "d", -1, "Maximum link depth to follow (default: max_crawl_depth)")
	cmd.Flags().String("session", "", "Previous session to clear before crawling")
	cmd.Flags().Bool("keep", false, "Keep the cache sessions after printing the results")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	appCfg, log, mgr, err := setup(cmd)
	if err != nil {
		return err
	}
	depth, _ := cmd.Flags().GetInt("depth")
	previous, _ := cmd.Flags().GetString("session")
	keep, _ := cmd.Flags().GetBool("keep")

	ctx, stop := signalContext(cmd.Context(), log)
	defer stop()

	orch := orchestrate.NewOrchestrator(appCfg, mgr, media.ExecRunner{}, logrus.NewEntry(log))

	var results []*orchestrate.Result
	if len(args) == 1 {
		res, runErr := orch.Run(ctx, orchestrate.Request{URL: args[0], Depth: depth, PreviousSessionID: previous})
		if res == nil {
			return runErr
		}
		results = []*orchestrate.Result{res}
	} else {
		if previous != "" && mgr.SessionExists(previous) {
			mgr.ClearSession(previous)
		}
		reqs := make([]orchestrate.Request, len(args))
		for i, u := range args {
			reqs[i] = orchestrate.Request{URL: u, Depth: depth}
		}
		results = orch.RunAll(ctx, reqs)
	}

	if !keep {
		defer func() {
			for _, r := range results {
				if r.SessionID != "" {
					mgr.ClearSession(r.SessionID)
				}
			}
		}()
	}

	var out any = results
	if len(results) == 1 {
		out = results[0]
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(results))
	}
	return nil
}
