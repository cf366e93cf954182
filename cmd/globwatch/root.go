// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for globwatch.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are overridden at build time via
	// -ldflags.
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "globwatch",
	Short: "Glob-filtered file watching from the command line",
	Long: TitleStyle.Render("globwatch") + SubtitleStyle.Render(" - glob-filtered file watching") + `

globwatch streams added/changed/deleted file events for a set of glob
patterns, backed by either an external Watchman-style daemon or a native
OS-level watch, falling back from the former to the latter transparently.`,
}

func getVersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}

// Execute runs the root command, installing signal handling and styled
// help/error rendering.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (accepted; no command reads it)")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(configCmd)
}
