// Package config handles application configuration using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config holds the application-level defaults layered under an explicit
// WatchOptions value (§3 WatchOptions still wins on a per-call basis; this
// is only what a call leaves unspecified).
type Config struct {
	// DaemonSocketPath is where the external watcher adapter (C5) looks for
	// a Watchman-style daemon when no socket path is given explicitly.
	DaemonSocketPath string `toml:"daemon_socket_path" mapstructure:"daemon_socket_path"`
	// DaemonConnectTimeout bounds how long Open waits to dial and complete
	// the capability/watch-project/subscribe handshake.
	DaemonConnectTimeout time.Duration `toml:"daemon_connect_timeout" mapstructure:"daemon_connect_timeout"`
	// DefaultMode is used when a call does not set WatchOptions.Mode.
	DefaultMode string `toml:"default_mode" mapstructure:"default_mode"`
	// DefaultIgnore is appended to every call's explicit ignore list.
	DefaultIgnore []string `toml:"default_ignore" mapstructure:"default_ignore"`
}

const (
	// AppName is the application name used to derive the config and runtime
	// directories.
	AppName = "globwatch"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// daemonSocketName is the default daemon socket filename within the
	// runtime directory.
	daemonSocketName = "globwatch.sock"
)

var (
	globalConfig *Config
	configPath   string
)

// DefaultConfig returns the configuration used when no config file is
// present.
func DefaultConfig() *Config {
	return &Config{
		DaemonSocketPath:     defaultSocketPath(),
		DaemonConnectTimeout: 2 * time.Second,
		DefaultMode:          "external",
		DefaultIgnore: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/__pycache__/**",
			"**/*.swp",
			"**/.DS_Store",
		},
	}
}

// defaultSocketPath mirrors the per-OS runtime-directory convention a
// Watchman-style daemon typically publishes its socket under.
func defaultSocketPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("TEMP"), AppName, daemonSocketName)
	default:
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, AppName, daemonSocketName)
		}
		return filepath.Join(os.TempDir(), AppName, daemonSocketName)
	}
}

// ConfigDir returns the application's configuration directory.
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load reads and parses the configuration file, falling back to
// DefaultConfig when none is found.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileExt)

	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	v.AddConfigPath(cfgDir)
	v.AddConfigPath(".")

	defaults := DefaultConfig()
	v.SetDefault("daemon_socket_path", defaults.DaemonSocketPath)
	v.SetDefault("daemon_connect_timeout", defaults.DaemonConnectTimeout)
	v.SetDefault("default_mode", defaults.DefaultMode)
	v.SetDefault("default_ignore", defaults.DefaultIgnore)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			globalConfig = defaults
			return globalConfig, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	configPath = v.ConfigFileUsed()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// Get returns the currently loaded configuration, loading it on first use
// and falling back to defaults if loading fails.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			return DefaultConfig()
		}
		return cfg
	}
	return globalConfig
}

// ConfigFilePath returns the path to the config file actually loaded, or
// empty when defaults were used.
func ConfigFilePath() string {
	return configPath
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig writes a default config file if none exists yet.
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return nil
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	header := []byte(`# globwatch configuration file
# See the project documentation for the full set of daemon_* and
# default_* keys this file recognizes.

`)
	return os.WriteFile(cfgPath, append(header, data...), 0o644)
}

// Save writes cfg to the config file, creating the config directory if
// needed.
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(cfgPath, data, 0o644)
}
