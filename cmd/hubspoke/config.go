package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hubspoke/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify hubspoke configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/hubspoke/config.yaml
Project-specific overrides can be placed in .hubspoke.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cmd, cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

// configKeys lists every key in display order.
var configKeys = []string{
	"run.world_size",
	"run.spec_file",
	"run.timeout",
	"logging.debug_log",
	"logging.quiet",
	"state.db_path",
	"state.disabled",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cmd *cobra.Command, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n# user config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# project config: %s\n", project)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "run.world_size":
		return strconv.Itoa(cfg.Run.WorldSize), nil
	case "run.spec_file":
		return orUnset(cfg.Run.SpecFile), nil
	case "run.timeout":
		return cfg.Run.Timeout.String(), nil
	case "logging.debug_log":
		return orUnset(cfg.Logging.DebugLog), nil
	case "logging.quiet":
		return strconv.FormatBool(cfg.Logging.Quiet), nil
	case "state.db_path":
		return orUnset(cfg.State.DBPath), nil
	case "state.disabled":
		return strconv.FormatBool(cfg.State.Disabled), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "run.world_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for run.world_size: %w", err)
		}
		if n < 0 {
			return fmt.Errorf("run.world_size must be non-negative (got %d)", n)
		}
		cfg.Run.WorldSize = n
	case "run.spec_file":
		cfg.Run.SpecFile = value
	case "run.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for run.timeout: %w", err)
		}
		cfg.Run.Timeout = d
	case "logging.debug_log":
		cfg.Logging.DebugLog = value
	case "logging.quiet":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for logging.quiet: %w", err)
		}
		cfg.Logging.Quiet = b
	case "state.db_path":
		cfg.State.DBPath = value
	case "state.disabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for state.disabled: %w", err)
		}
		cfg.State.Disabled = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
