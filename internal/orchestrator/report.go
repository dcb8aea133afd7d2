package orchestrator

import (
	"github.com/conneroisu/carver/internal/block"
	"github.com/conneroisu/carver/internal/syncer"
)

// Entry records the outcome for one block of one composite file.
type Entry struct {
	File        string             `json:"file" yaml:"file"`
	Kind        string             `json:"kind" yaml:"kind"`
	Destination string             `json:"destination" yaml:"destination"`
	Path        string             `json:"path,omitempty" yaml:"path,omitempty"`
	Action      string             `json:"action" yaml:"action"`
	Reason      string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message     string             `json:"message,omitempty" yaml:"message,omitempty"`
	Decision    string             `json:"decision,omitempty" yaml:"decision,omitempty"`
	DryRun      bool               `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	action      syncer.Action
}

// FileWarning is one parse warning attributed to a composite file.
type FileWarning struct {
	File    string `json:"file" yaml:"file"`
	Warning string `json:"warning" yaml:"warning"`
}

// Report aggregates per-block outcomes across a batch. One file's failures
// never stop other files; a cancel decision stops the batch and is recorded
// here.
type Report struct {
	Files       int           `json:"files" yaml:"files"`
	Created     int           `json:"created" yaml:"created"`
	Overwritten int           `json:"overwritten" yaml:"overwritten"`
	Unchanged   int           `json:"unchanged" yaml:"unchanged"`
	Conflicts   int           `json:"conflicts" yaml:"conflicts"`
	Rejected    int           `json:"rejected" yaml:"rejected"`
	Errors      int           `json:"errors" yaml:"errors"`
	Skipped     int           `json:"skipped" yaml:"skipped"`
	Merged      int           `json:"merged" yaml:"merged"`
	Cancelled   bool          `json:"cancelled" yaml:"cancelled"`
	Warnings    []FileWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Entries     []Entry       `json:"entries" yaml:"entries"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// AllClean reports whether the batch finished without conflicts,
// rejections, or errors. External callers map this to the exit code.
func (r *Report) AllClean() bool {
	return r.Conflicts == 0 && r.Rejected == 0 && r.Errors == 0 && !r.Cancelled
}

func (r *Report) record(e Entry) {
	switch e.action.Kind {
	case syncer.ActionWrite:
		if e.action.Reason == syncer.ReasonOverwritten {
			r.Overwritten++
		} else {
			r.Created++
		}
	case syncer.ActionUnchanged:
		r.Unchanged++
	case syncer.ActionConflict:
		r.Conflicts++
	case syncer.ActionRejected:
		r.Rejected++
	case syncer.ActionError:
		r.Errors++
	}
	r.Entries = append(r.Entries, e)
}

func (r *Report) addWarning(file, warning string) {
	r.Warnings = append(r.Warnings, FileWarning{File: file, Warning: warning})
}

// addFileError records a whole-file failure (unreadable file) so it is
// reported and skipped, not silently dropped.
func (r *Report) addFileError(file string, err error) {
	r.Errors++
	r.Entries = append(r.Entries, Entry{
		File:    file,
		Action:  syncer.ActionError.String(),
		Message: err.Error(),
		action:  syncer.Action{Kind: syncer.ActionError, Err: err},
	})
}

func newEntry(file string, b block.Block, dest string, action syncer.Action, dryRun bool) Entry {
	e := Entry{
		File:        file,
		Kind:        b.Kind.String(),
		Destination: b.Destination,
		Path:        dest,
		Action:      action.Kind.String(),
		Message:     action.Message,
		DryRun:      dryRun,
		action:      action,
	}
	if action.Kind == syncer.ActionWrite {
		e.Reason = action.Reason.String()
	}
	if action.Err != nil && e.Message == "" {
		e.Message = action.Err.Error()
	}
	return e
}
