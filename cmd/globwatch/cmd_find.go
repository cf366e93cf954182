// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"globwatch/pkg/watch"
)

var findFlags struct {
	cwd             string
	ignore          []string
	dot             bool
	onlyFiles       bool
	onlyDirectories bool
	absolute        bool
}

var findCmd = &cobra.Command{
	Use:   "find <pattern>...",
	Short: "Perform a one-shot scan for a set of glob patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := watch.Options{
			Cwd:      findFlags.cwd,
			Dot:      findFlags.dot,
			Ignore:   findFlags.ignore,
			Absolute: findFlags.absolute,
		}
		if cmd.Flags().Changed("only-files") {
			opts.OnlyFiles = &findFlags.onlyFiles
		}
		if cmd.Flags().Changed("only-directories") {
			opts.OnlyDirectories = &findFlags.onlyDirectories
		}

		matches, err := watch.FindFiles(args, opts)
		if err != nil {
			return fmt.Errorf("find failed: %w", err)
		}
		for _, m := range matches {
			fmt.Println(m)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().StringVar(&findFlags.cwd, "cwd", "", "root directory to scan (default: current directory)")
	findCmd.Flags().StringSliceVar(&findFlags.ignore, "ignore", nil, "additional glob patterns to exclude")
	findCmd.Flags().BoolVar(&findFlags.dot, "dot", false, "include dotfiles and dot-directories")
	findCmd.Flags().BoolVar(&findFlags.onlyFiles, "only-files", true, "restrict matches to regular files")
	findCmd.Flags().BoolVar(&findFlags.onlyDirectories, "only-directories", false, "restrict matches to directories")
	findCmd.Flags().BoolVar(&findFlags.absolute, "absolute", false, "report absolute paths instead of root-relative paths")
}
