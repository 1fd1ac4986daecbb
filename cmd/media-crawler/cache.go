package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/watch"
)

// sessionSummary is one line of `cache info`
type sessionSummary struct {
	SessionID    string         `json:"session_id"`
	MediaCount   int            `json:"media_count"`
	DiskUsage    int64          `json:"disk_usage"`
	MediaTypes   map[string]int `json:"media_types"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
}

// NewCacheCmd creates the cache command group
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the media cache",
	}
	cmd.AddCommand(newCacheInfoCmd())
	cmd.AddCommand(newCacheCleanCmd())
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheTreeCmd())
	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the cache location, total size and every session as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, mgr, err := setup(cmd)
			if err != nil {
				return err
			}

			sessions := make([]sessionSummary, 0)
			for _, id := range mgr.ListSessions() {
				stats := mgr.GetSessionStats(id)
				sessions = append(sessions, sessionSummary{
					SessionID:    id,
					MediaCount:   stats.MediaCount,
					DiskUsage:    stats.DiskUsage,
					MediaTypes:   stats.MediaTypes,
					CreatedAt:    stats.CreatedAt,
					LastAccessed: stats.LastAccessed,
				})
			}

			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"cache_dir":  mgr.Root(),
				"total_size": mgr.GetCacheSize(),
				"sessions":   sessions,
			})
		},
	}
}

func newCacheCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove sessions idle for longer than the expiry",
		Long: `Clean removes every session whose last access is older than --expiry
(default: cache_expiry from the configuration). Sessions with missing or
unreadable metadata are removed as well. --expiry 0 removes every session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, _, mgr, err := setup(cmd)
			if err != nil {
				return err
			}

			expiry := appCfg.CacheExpiryDuration()
			if cmd.Flags().Changed("expiry") {
				raw, _ := cmd.Flags().GetString("expiry")
				if expiry, err = watch.ParseInterval(raw); err != nil {
					return err
				}
			}

			removed := mgr.CleanExpiredSessions(expiry)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sessions\n", removed)
			return nil
		},
	}
	cmd.Flags().String("expiry", "", "Idle time after which a session expires (e.g. 30m, 1h, 7d)")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Delete one session and every file in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, mgr, err := setup(cmd)
			if err != nil {
				return err
			}
			id := args[0]
			if !mgr.SessionExists(id) {
				return fmt.Errorf("%w: '%s'", utils.ErrSessionNotFound, id)
			}
			if !mgr.ClearSession(id) {
				return fmt.Errorf("failed to clear session '%s'", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", id)
			return nil
		},
	}
}

func newCacheTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <session-id>",
		Short: "Print the files of one session as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, mgr, err := setup(cmd)
			if err != nil {
				return err
			}
			return mgr.WriteSessionTree(cmd.OutOrStdout(), args[0])
		},
	}
}
