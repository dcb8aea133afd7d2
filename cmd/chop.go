package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/carver/internal/config"
	"github.com/conneroisu/carver/internal/orchestrator"
	"github.com/conneroisu/carver/internal/syncer"
)

var chopCmd = &cobra.Command{
	Use:     "chop [source]",
	Aliases: []string{"c"},
	Short:   "Chop composite files into their fragment files",
	Long: `Chop composite files into their separate fragment files. The source may
be a single composite file or a directory searched recursively for
*.carve.html files.

Examples:
  carver chop src/                          # Chop everything under src/
  carver chop page.carve.html               # Chop a single file
  carver chop src/ -s js -c css -m views    # Per-kind output directories
  carver chop src/ --comments               # Prepend provenance banners
  carver chop src/ --warn                   # Report drift, write nothing new
  carver chop src/ --warn --update          # Fold fragment edits back
  carver chop src/ --dry-run                # Show what would happen`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindChopFlags(cmd.Flags())
	},
	RunE: runChop,
}

func init() {
	rootCmd.AddCommand(chopCmd)
	addChopFlags(chopCmd.Flags())
}

// addChopFlags registers the flag set shared by chop and watch. Each
// command carries its own copy of these flags.
func addChopFlags(fs *pflag.FlagSet) {
	fs.StringP("script-dir", "s", "", "destination directory for script fragments")
	fs.StringP("style-dir", "c", "", "destination directory for style fragments")
	fs.StringP("markup-dir", "m", "", "destination directory for markup fragments")
	fs.Bool("comments", false, "prepend a provenance comment to generated fragments")
	fs.BoolP("warn", "w", false, "report when a fragment differs instead of overwriting it")
	fs.BoolP("update", "u", false, "interactively fold fragment edits back into the composite source (requires --warn)")
	fs.Bool("dry-run", false, "perform every check but write nothing")
	fs.StringSlice("exclude", nil, "glob patterns excluded from discovery")
}

// bindChopFlags points the shared viper keys at the invoked command's flag
// set. A viper key holds one flag binding at a time, and chop and watch
// register the same flags on separate sets, so binding has to happen per
// invocation rather than at init.
func bindChopFlags(fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"output.script_dir": "script-dir",
		"output.style_dir":  "style-dir",
		"output.markup_dir": "markup-dir",
		"chop.comments":     "comments",
		"chop.warn":         "warn",
		"chop.update":       "update",
		"chop.dry_run":      "dry-run",
		"exclude":           "exclude",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func runChop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	source := cfg.Source
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		source = "."
	}

	printer := newPrinter(os.Stdout)
	mode := cfg.Mode(false)

	var prompter syncer.Prompter
	if mode.Update {
		prompter = newTerminalPrompter(os.Stdin, os.Stdout)
	}

	report, err := orchestrator.Run(cmd.Context(), source, orchestrator.Options{
		ScriptDir: cfg.Output.ScriptDir,
		StyleDir:  cfg.Output.StyleDir,
		MarkupDir: cfg.Output.MarkupDir,
		Exclude:   cfg.Exclude,
		Mode:      mode,
		Prompter:  prompter,
		Logger:    newLogger(),
		Hooks:     printer.hooks(),
	})
	if err != nil {
		return err
	}

	if err := printer.summary(report, outputFormat); err != nil {
		return err
	}

	if !report.AllClean() {
		return fmt.Errorf("some fragments are not clean")
	}
	return nil
}
