// Package cmd provides the command-line interface for carver with
// configuration from multiple sources.
//
// Configuration precedence, highest first:
//  1. Command-line flags (--script-dir, --warn, ...)
//  2. CARVER_CONFIG_FILE environment variable - custom config file path
//  3. Individual environment variables (CARVER_OUTPUT_SCRIPT_DIR, ...)
//  4. A .carver.yml file found in the working directory or up to five
//     parent directories above it
//
// Environment variables follow the CARVER_<SECTION>_<OPTION> pattern:
//
//	CARVER_CONFIG_FILE: Path to custom configuration file
//	CARVER_OUTPUT_SCRIPT_DIR: Destination for script fragments
//	CARVER_OUTPUT_STYLE_DIR: Destination for style fragments
//	CARVER_OUTPUT_MARKUP_DIR: Destination for markup fragments
//	CARVER_CHOP_COMMENTS, CARVER_CHOP_WARN, CARVER_CHOP_UPDATE, ...
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/carver/internal/config"
	"github.com/conneroisu/carver/internal/logging"
)

var (
	cfgFile      string
	logLevel     string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "carver",
	Short: "Split composite markup files into script, style, and markup fragments",
	Long: `Carver splits composite markup documents (*.carve.html) into separate
fragment files. Elements carrying a carve:file attribute name the relative
destination of their inner content; {NAME} inside the attribute is replaced
with the composite file's base name.

Key features:
  • One composite source, many generated fragments
  • Conflict detection when fragments were edited by hand (--warn)
  • Reverse sync of fragment edits into the composite source (--warn --update)
  • Watch mode that re-chops on change
  • Dry-run that reports what would happen without writing

Quick start:
  carver chop src/                Chop every composite file under src/
  carver chop page.carve.html     Chop a single file
  carver watch src/               Re-chop on change
  carver chop src/ --warn         Report drift instead of overwriting`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .carver.yml, can also use CARVER_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "summary format (text, json, yaml)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system. When no config file is
// named explicitly, .carver.yml is searched for in the working directory
// and a bounded number of parents, so a project-root config is found from
// any subdirectory.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("CARVER_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		dir, err := os.Getwd()
		if err != nil {
			dir = "."
		}
		for i := 0; i <= config.MaxSearchDepth; i++ {
			viper.AddConfigPath(dir)
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".carver")
	}

	viper.SetEnvPrefix("CARVER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing or malformed config files degrade to defaults without failing.
	_ = viper.ReadInConfig()
}

func newLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(logLevel),
		Format: "text",
		Output: os.Stderr,
	})
}
