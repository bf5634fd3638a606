// Package config handles configuration loading for hubspoke.
// It supports XDG config paths, project-level overrides, and environment
// variables, plus the YAML run-spec files that describe a run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectConfigName is the per-project override file.
const ProjectConfigName = ".hubspoke.yaml"

// Config holds all configuration for hubspoke.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Logging LoggingConfig `mapstructure:"logging"`
	State   StateConfig   `mapstructure:"state"`
}

// RunConfig holds defaults for `hubspoke run`.
type RunConfig struct {
	// WorldSize is used when neither the flag nor the spec file sets one.
	WorldSize int `mapstructure:"world_size"`
	// SpecFile is the default run-spec path.
	SpecFile string `mapstructure:"spec_file"`
	// Timeout bounds a whole run; zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// DebugLog is the path of the per-rank debug log; empty disables it.
	DebugLog string `mapstructure:"debug_log"`
	// Quiet suppresses console progress markers.
	Quiet bool `mapstructure:"quiet"`
}

// StateConfig holds run ledger settings.
type StateConfig struct {
	// DBPath is the SQLite ledger path; empty uses the XDG data dir.
	DBPath string `mapstructure:"db_path"`
	// Disabled turns the ledger off.
	Disabled bool `mapstructure:"disabled"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (HUBSPOKE_RUN_WORLD_SIZE, HUBSPOKE_STATE_DB_PATH, ...)
// 2. Project config (.hubspoke.yaml in current directory or parent)
// 3. User config (~/.config/hubspoke/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file, still honoring
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HUBSPOKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.State.DBPath = expandPath(cfg.State.DBPath)
	cfg.Logging.DebugLog = expandPath(cfg.Logging.DebugLog)
	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))
	v.Set("run.world_size", cfg.Run.WorldSize)
	v.Set("run.spec_file", cfg.Run.SpecFile)
	v.Set("run.timeout", cfg.Run.Timeout.String())
	v.Set("logging.debug_log", cfg.Logging.DebugLog)
	v.Set("logging.quiet", cfg.Logging.Quiet)
	v.Set("state.db_path", cfg.State.DBPath)
	v.Set("state.disabled", cfg.State.Disabled)
	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.world_size", 0)
	v.SetDefault("run.spec_file", "")
	v.SetDefault("run.timeout", "0s")
	v.SetDefault("logging.debug_log", "")
	v.SetDefault("logging.quiet", false)
	v.SetDefault("state.db_path", "")
	v.SetDefault("state.disabled", false)
}

// getUserConfigDir returns the XDG config directory for hubspoke.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hubspoke")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hubspoke")
	}
	return filepath.Join(home, ".config", "hubspoke")
}

// findProjectConfig searches for .hubspoke.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// expandPath expands ${VAR} references and a leading ~/.
func expandPath(s string) string {
	s = os.ExpandEnv(s)
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return s
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{}
}
