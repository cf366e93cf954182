// SPDX-License-Identifier: MPL-2.0

// Package config handles application-level defaults using Viper with TOML
// as the file format.
//
// Configuration is loaded from ~/.config/globwatch/config.toml (or XDG
// equivalent on Linux, ~/Library/Application Support/globwatch/config.toml
// on macOS, %APPDATA%\globwatch\config.toml on Windows). It supplies only
// what an explicit WatchOptions value leaves unspecified: the daemon socket
// path and connect timeout, the default mode, and a default ignore list.
package config
