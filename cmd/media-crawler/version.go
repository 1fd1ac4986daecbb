package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags
var (
	version = ""
	commit  = ""
	date    = ""
)

// getVersion prefers ldflags, then build info, then "(devel)"
func getVersion() string {
	if version != "" {
		return version
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok && buildInfo.Main.Version != "" {
		return buildInfo.Main.Version
	}
	return "(devel)"
}

func buildSetting(key, fallback string) string {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			if setting.Key == key {
				return setting.Value
			}
		}
	}
	return fallback
}

func getCommit() string {
	if commit != "" {
		return commit
	}
	rev := buildSetting("vcs.revision", "unknown")
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func getDate() string {
	if date != "" {
		return date
	}
	return buildSetting("vcs.time", "unknown")
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "media-crawler version %s\n", getVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", getCommit())
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", getDate())
		},
	}
}
