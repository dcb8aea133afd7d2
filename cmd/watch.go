package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/carver/internal/config"
	"github.com/conneroisu/carver/internal/orchestrator"
	"github.com/conneroisu/carver/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [source]",
	Aliases: []string{"w"},
	Short:   "Watch for changes and re-chop composite files",
	Long: `Watch the source directory and re-chop composite files as they change.
An initial chop of the whole source runs first; after that only the
changed files are re-processed, one run at a time.

While watching, the composite source always wins: warn mode applies only
to the initial run, and --update is rejected because interactive merges
cannot be answered from a change event.

Examples:
  carver watch src/                      # Watch and re-chop on change
  carver watch src/ -s js -c css        # With per-kind output directories`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindChopFlags(cmd.Flags())
	},
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addChopFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	log := newLogger()
	printer := newPrinter(os.Stdout)

	// Mode validation happens against watch mode so --update is rejected
	// before any file is touched.
	mode := cfg.Mode(true)
	if err := mode.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseOpts := orchestrator.Options{
		ScriptDir: cfg.Output.ScriptDir,
		StyleDir:  cfg.Output.StyleDir,
		MarkupDir: cfg.Output.MarkupDir,
		Exclude:   cfg.Exclude,
		Mode:      mode,
		Logger:    log,
		Hooks:     printer.hooks(),
	}

	// Initial pass over the whole source honors the configured mode.
	if _, err := orchestrator.Run(ctx, source, baseOpts); err != nil {
		return err
	}

	// Re-chop runs always overwrite: a change event cannot answer a
	// conflict prompt, so warn is forced off while watching.
	watchOpts := baseOpts
	watchOpts.Mode.Warn = false
	watchOpts.Mode.Update = false

	w, err := watcher.New(cfg.Watch.Debounce, log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Stop()

	w.AddFilter(watcher.CompositeFilter)
	w.AddFilter(watcher.NoSymlinkFilter)
	w.AddFilter(watcher.NoHiddenDirFilter)
	w.SetHandler(func(paths []string) error {
		for _, path := range paths {
			if _, err := orchestrator.Run(ctx, path, watchOpts); err != nil {
				log.Error(ctx, err, "re-chop failed", "path", path)
			}
		}
		return nil
	})

	if err := w.AddRecursive(source); err != nil {
		return fmt.Errorf("failed to watch %s: %w", source, err)
	}
	w.Start(ctx)

	fmt.Fprintf(os.Stdout, "Watching %s for changes. Press Ctrl+C to stop.\n", source)
	<-ctx.Done()
	fmt.Fprintln(os.Stdout, "\nWatch ended.")
	return nil
}
