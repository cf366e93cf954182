// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"globwatch/pkg/watch"
)

var watchFlags struct {
	mode            string
	cwd             string
	ignore          []string
	fields          []string
	dot             bool
	onlyFiles       bool
	onlyDirectories bool
	absolute        bool
	socketPath      string
	connectTimeout  time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch <pattern>...",
	Short: "Stream added/changed/deleted events for a set of glob patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := watch.Options{
			Mode:           watch.Mode(watchFlags.mode),
			Cwd:            watchFlags.cwd,
			Dot:            watchFlags.dot,
			Ignore:         watchFlags.ignore,
			Absolute:       watchFlags.absolute,
			SocketPath:     watchFlags.socketPath,
			ConnectTimeout: watchFlags.connectTimeout,
			Fields:         parseFields(watchFlags.fields),
		}
		if cmd.Flags().Changed("only-files") {
			opts.OnlyFiles = &watchFlags.onlyFiles
		}
		if cmd.Flags().Changed("only-directories") {
			opts.OnlyDirectories = &watchFlags.onlyDirectories
		}

		destroy, err := watch.Watch(args, printBatch, opts)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer destroy()

		<-cmd.Context().Done()
		return destroy()
	},
}

func parseFields(names []string) []watch.Field {
	fields := make([]watch.Field, 0, len(names))
	for _, name := range names {
		switch name {
		case "type":
			fields = append(fields, watch.FieldType)
		case "size":
			fields = append(fields, watch.FieldSize)
		case "mtime":
			fields = append(fields, watch.FieldMTime)
		}
	}
	return fields
}

func printBatch(fc watch.FileChanges) {
	for p := range fc.Added {
		fmt.Println(AddedStyle.Render("+"), p)
	}
	for p := range fc.Changed {
		fmt.Println(ModifiedStyle.Render("~"), p)
	}
	for p := range fc.Deleted {
		fmt.Println(DeletedStyle.Render("-"), p)
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.mode, "mode", "", "backend mode: external, native, or oneshot (default: from config)")
	watchCmd.Flags().StringVar(&watchFlags.cwd, "cwd", "", "root directory to watch (default: current directory)")
	watchCmd.Flags().StringSliceVar(&watchFlags.ignore, "ignore", nil, "additional glob patterns to exclude")
	watchCmd.Flags().StringSliceVar(&watchFlags.fields, "field", nil, "extra entry fields to report: type, size, mtime")
	watchCmd.Flags().BoolVar(&watchFlags.dot, "dot", false, "include dotfiles and dot-directories")
	watchCmd.Flags().BoolVar(&watchFlags.onlyFiles, "only-files", true, "restrict matches to regular files")
	watchCmd.Flags().BoolVar(&watchFlags.onlyDirectories, "only-directories", false, "restrict matches to directories")
	watchCmd.Flags().BoolVar(&watchFlags.absolute, "absolute", false, "report absolute paths instead of root-relative paths")
	watchCmd.Flags().StringVar(&watchFlags.socketPath, "socket", "", "external daemon socket path (default: from config)")
	watchCmd.Flags().DurationVar(&watchFlags.connectTimeout, "connect-timeout", 0, "external daemon connect timeout (default: from config)")
}
