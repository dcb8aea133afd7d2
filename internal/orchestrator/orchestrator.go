// Package orchestrator drives a batch run: discover composite files, pipe
// each one through parse → resolve → decide → apply in document order, and
// aggregate per-block outcomes into a report. One file's failures never
// abort the batch; only a user cancel during an interactive update does.
package orchestrator

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/conneroisu/carver/internal/block"
	"github.com/conneroisu/carver/internal/comments"
	"github.com/conneroisu/carver/internal/errors"
	"github.com/conneroisu/carver/internal/logging"
	"github.com/conneroisu/carver/internal/parser"
	"github.com/conneroisu/carver/internal/resolver"
	"github.com/conneroisu/carver/internal/syncer"
	"github.com/conneroisu/carver/internal/writer"
)

// Options configures a batch run. The prompter is only consulted in update
// mode; the hooks are optional observers for live CLI output.
type Options struct {
	ScriptDir string
	StyleDir  string
	MarkupDir string
	Exclude   []string
	Mode      syncer.Mode
	Prompter  syncer.Prompter
	Logger    logging.Logger
	Hooks     Hooks
}

// Hooks lets the caller observe progress without the orchestrator knowing
// anything about terminals.
type Hooks struct {
	FileStart func(path string)
	BlockDone func(e Entry, last bool)
	FileDone  func(path string, rewritten bool)
}

// Run processes one composite file or every composite file under a root.
// Configuration errors (invalid mode combination, missing prompter in
// update mode, unresolvable source) are returned before any file is
// touched; everything after that is captured in the report.
func Run(ctx context.Context, source string, opts Options) (*Report, error) {
	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode.Update && opts.Prompter == nil {
		return nil, errors.NewConfigError("prompter-missing", "update mode requires a conflict prompter")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	files, err := Discover(source, opts.Exclude)
	if err != nil {
		return nil, err
	}

	report := NewReport()
	for _, path := range files {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.Files++
		if cancelled := processFile(ctx, path, opts, report); cancelled {
			report.Cancelled = true
			break
		}
	}
	return report, nil
}

// processFile runs the full pipeline for one composite file. The returned
// bool is true when the user cancelled; merges applied before the cancel
// point are committed first.
func processFile(ctx context.Context, path string, opts Options, report *Report) bool {
	log := opts.Logger.WithComponent("orchestrator")

	if opts.Hooks.FileStart != nil {
		opts.Hooks.FileStart(path)
	}

	text, err := ReadTextFile(path)
	if err != nil {
		log.Error(ctx, err, "skipping unreadable file", "path", path)
		report.addFileError(path, err)
		return false
	}

	doc, warnings := parser.ParseDocument(path, text)
	for _, w := range warnings {
		log.Warn(ctx, nil, "parse warning", "path", path, "detail", w.String())
		report.addWarning(path, w.String())
	}

	sourceBase := strings.TrimSuffix(filepath.Base(path), block.CompositeSuffix)
	sourceName := filepath.Base(path)

	for i := range doc.Blocks {
		b := doc.Blocks[i]
		resolved := resolver.Resolve(b.Destination, opts.dirFor(b.Kind), sourceBase)

		var action syncer.Action
		var destContent *string
		readFailed := false
		if resolved.Valid {
			destContent, err = writer.ReadDestination(resolved.AbsolutePath)
			if err != nil {
				readFailed = true
				action = syncer.Action{Kind: syncer.ActionError, Err: err, Message: err.Error()}
			}
		}

		style := comments.ForDestination(b.Destination, b.Kind)
		rendered := b.Content
		if opts.Mode.Comments {
			rendered = comments.Render(b.Content, style, sourceName, b.Destination)
		}

		if !readFailed {
			action = syncer.Decide(resolved, rendered, destContent, opts.Mode)
		}

		entry := newEntry(path, b, resolved.AbsolutePath, action, opts.Mode.DryRun)

		if action.Kind == syncer.ActionConflict && opts.Mode.Update {
			decision := opts.Prompter.Resolve(syncer.Conflict{
				SourcePath:  path,
				Destination: resolved.AbsolutePath,
				Block:       b,
				DestContent: *destContent,
			})
			entry.Decision = decision.String()

			switch decision {
			case syncer.DecisionPull:
				if err := syncer.Merge(doc, i, *destContent, style, opts.Mode.Comments); err != nil {
					log.Error(ctx, err, "merge failed", "path", path)
				} else {
					report.Merged++
				}
			case syncer.DecisionSkip:
				report.Skipped++
			case syncer.DecisionCancel:
				report.record(entry)
				finishDocument(ctx, doc, opts, report)
				log.Info(ctx, "batch cancelled by user", "path", path)
				return true
			}
		} else {
			res, werr := writer.Apply(action, resolved, rendered, opts.Mode.DryRun)
			if werr != nil {
				action = syncer.Action{Kind: syncer.ActionError, Err: werr, Message: werr.Error()}
				entry = newEntry(path, b, resolved.AbsolutePath, action, opts.Mode.DryRun)
			}
			if res.DirCreated {
				log.Debug(ctx, "created destination directory", "path", filepath.Dir(res.Path))
			}
		}

		report.record(entry)
		if opts.Hooks.BlockDone != nil {
			opts.Hooks.BlockDone(entry, i == len(doc.Blocks)-1)
		}
	}

	finishDocument(ctx, doc, opts, report)
	return false
}

// finishDocument commits the one composite rewrite a run may owe after
// reverse merges.
func finishDocument(ctx context.Context, doc *block.Document, opts Options, report *Report) {
	if !doc.Dirty() {
		if opts.Hooks.FileDone != nil {
			opts.Hooks.FileDone(doc.Path, false)
		}
		return
	}
	if err := writer.WriteDocument(doc, opts.Mode.DryRun); err != nil {
		opts.Logger.Error(ctx, err, "composite rewrite failed", "path", doc.Path)
		report.addFileError(doc.Path, err)
		return
	}
	if opts.Hooks.FileDone != nil {
		opts.Hooks.FileDone(doc.Path, true)
	}
}

// dirFor maps a block kind to its configured output directory. An unset
// directory means the current working directory, matching the CLI default.
func (o Options) dirFor(k block.Kind) string {
	var dir string
	switch k {
	case block.KindScript:
		dir = o.ScriptDir
	case block.KindStyle:
		dir = o.StyleDir
	case block.KindMarkup:
		dir = o.MarkupDir
	}
	if dir == "" {
		dir = "."
	}
	return dir
}
