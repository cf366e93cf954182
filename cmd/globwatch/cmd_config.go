// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"globwatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage globwatch configuration",
	Long: `Manage globwatch configuration.

Configuration is stored in:
  - Linux: ~/.config/globwatch/config.toml
  - macOS: ~/Library/Application Support/globwatch/config.toml
  - Windows: %APPDATA%\globwatch\config.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfig(); err != nil {
				return err
			}
			path, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Println(SuccessStyle.Render("✓"), "configuration file present in", CmdStyle.Render(path))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if p := config.ConfigFilePath(); p != "" {
				fmt.Println(p)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Println(dir, SubtitleStyle.Render("(no config file loaded, showing default directory)"))
			return nil
		},
	})
}

func showConfig() error {
	cfg := config.Get()

	fmt.Println(TitleStyle.Render("Current Configuration"))
	fmt.Println()
	fmt.Println(CmdStyle.Render("daemon_socket_path"), "=", cfg.DaemonSocketPath)
	fmt.Println(CmdStyle.Render("daemon_connect_timeout"), "=", cfg.DaemonConnectTimeout)
	fmt.Println(CmdStyle.Render("default_mode"), "=", cfg.DefaultMode)
	fmt.Println(CmdStyle.Render("default_ignore"), "=", cfg.DefaultIgnore)
	return nil
}
