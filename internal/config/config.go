// Package config provides configuration management for carver using Viper,
// loading from command-line flags, CARVER_-prefixed environment variables,
// and a .carver.yml file found by a bounded upward directory search.
//
// Precedence, highest first: flags, environment, config file, defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/carver/internal/syncer"
)

// MaxSearchDepth bounds the upward directory search for a config file.
const MaxSearchDepth = 5

// Config is the resolved configuration for a run.
type Config struct {
	Source  string       `yaml:"source"`
	Output  OutputConfig `yaml:"output"`
	Chop    ChopConfig   `yaml:"chop"`
	Watch   WatchConfig  `yaml:"watch"`
	Exclude []string     `yaml:"exclude"`
}

// OutputConfig names the three destination base directories, one per block
// kind.
type OutputConfig struct {
	ScriptDir string `yaml:"script_dir" mapstructure:"script_dir"`
	StyleDir  string `yaml:"style_dir" mapstructure:"style_dir"`
	MarkupDir string `yaml:"markup_dir" mapstructure:"markup_dir"`
}

// ChopConfig holds the mode flags for chop runs.
type ChopConfig struct {
	Comments bool `yaml:"comments"`
	Warn     bool `yaml:"warn"`
	Update   bool `yaml:"update"`
	DryRun   bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load unmarshals the viper state into a Config, applies defaults, and
// validates it.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Workarounds for viper slice/bool handling when values come from
	// flags or the environment rather than the config file.
	if viper.IsSet("exclude") && len(config.Exclude) == 0 {
		config.Exclude = viper.GetStringSlice("exclude")
	}
	if viper.IsSet("chop.comments") {
		config.Chop.Comments = viper.GetBool("chop.comments")
	}
	if viper.IsSet("chop.warn") {
		config.Chop.Warn = viper.GetBool("chop.warn")
	}
	if viper.IsSet("chop.update") {
		config.Chop.Update = viper.GetBool("chop.update")
	}
	if viper.IsSet("chop.dry_run") {
		config.Chop.DryRun = viper.GetBool("chop.dry_run")
	}

	if config.Output.ScriptDir == "" {
		config.Output.ScriptDir = "."
	}
	if config.Output.StyleDir == "" {
		config.Output.StyleDir = "."
	}
	if config.Output.MarkupDir == "" {
		config.Output.MarkupDir = "."
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}
	if len(config.Exclude) == 0 {
		config.Exclude = []string{"**/node_modules/**", "**/.git/**"}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Mode assembles the syncer mode for this configuration. The watch flag is
// per-command, not per-config-file, so the caller supplies it.
func (c *Config) Mode(watch bool) syncer.Mode {
	return syncer.Mode{
		Comments: c.Chop.Comments,
		Warn:     c.Chop.Warn,
		Update:   c.Chop.Update,
		DryRun:   c.Chop.DryRun,
		Watch:    watch,
	}
}

// validateConfig validates configuration values for correctness and basic
// path hygiene.
func validateConfig(config *Config) error {
	for name, dir := range map[string]string{
		"script_dir": config.Output.ScriptDir,
		"style_dir":  config.Output.StyleDir,
		"markup_dir": config.Output.MarkupDir,
	} {
		if err := validateDir(dir); err != nil {
			return fmt.Errorf("output %s: %w", name, err)
		}
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}

	return nil
}

// validateDir rejects output directories with dangerous characters. A
// relative directory with .. segments is allowed here — the sandbox check
// happens per block against the canonicalized base.
func validateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(dir)
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
