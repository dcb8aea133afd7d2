// Package syncer decides what to do with each extracted block: compare it
// against the destination file's prior content and produce exactly one
// Action, and — in update mode — fold destination edits back into the
// composite document. All decisions are pure functions over values the
// orchestrator already obtained; the package performs no I/O and no
// prompting.
package syncer

import (
	"github.com/conneroisu/carver/internal/block"
	"github.com/conneroisu/carver/internal/comments"
	"github.com/conneroisu/carver/internal/errors"
	"github.com/conneroisu/carver/internal/resolver"
)

// Mode holds the flag set that shapes sync decisions.
type Mode struct {
	Comments bool
	Warn     bool
	Update   bool
	DryRun   bool
	Watch    bool
}

// Validate rejects invalid flag combinations before any block is
// processed.
func (m Mode) Validate() error {
	if m.Update && !m.Warn {
		return errors.NewConfigError("update-requires-warn", "update mode requires warn mode")
	}
	if m.Update && m.Watch {
		return errors.NewConfigError("update-excludes-watch", "update mode cannot be combined with watch mode")
	}
	return nil
}

// ActionKind enumerates the outcome variants for one block.
type ActionKind int

const (
	ActionWrite ActionKind = iota
	ActionUnchanged
	ActionConflict
	ActionRejected
	ActionError
)

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionWrite:
		return "write"
	case ActionUnchanged:
		return "unchanged"
	case ActionConflict:
		return "conflict"
	case ActionRejected:
		return "rejected"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

// WriteReason distinguishes creating a new destination from overwriting an
// existing one.
type WriteReason int

const (
	ReasonCreated WriteReason = iota
	ReasonOverwritten
)

// String returns the string representation of the write reason.
func (r WriteReason) String() string {
	if r == ReasonOverwritten {
		return "overwritten"
	}
	return "created"
}

// Action is the outcome for one block after comparison with existing
// destination content. Exactly one Action is produced per block per run.
type Action struct {
	Kind    ActionKind
	Reason  WriteReason // meaningful only for ActionWrite
	Message string      // rejection or error detail
	Err     error       // underlying cause for ActionError
}

// Decide applies the sync rules in order: invalid path, absent destination,
// identical content, then the mode-dependent conflict handling. rendered is
// the content the writer would produce for this block, provenance banner
// included when comment wrapping is on.
func Decide(resolved resolver.ResolvedPath, rendered string, destContent *string, mode Mode) Action {
	if !resolved.Valid {
		return Action{Kind: ActionRejected, Message: resolved.Reason}
	}
	if destContent == nil {
		return Action{Kind: ActionWrite, Reason: ReasonCreated}
	}
	if *destContent == rendered {
		return Action{Kind: ActionUnchanged}
	}
	if mode.Warn {
		return Action{Kind: ActionConflict}
	}
	// Plain mode: the composite source always wins.
	return Action{Kind: ActionWrite, Reason: ReasonOverwritten}
}

// SyncDecision is the answer to a conflict in update mode.
type SyncDecision int

const (
	// DecisionPull merges the destination content into the source block.
	DecisionPull SyncDecision = iota
	// DecisionSkip leaves both sides exactly as they are.
	DecisionSkip
	// DecisionCancel aborts the whole batch immediately. Merges already
	// applied before the cancel point stay applied.
	DecisionCancel
)

// String returns the string representation of the decision.
func (d SyncDecision) String() string {
	switch d {
	case DecisionPull:
		return "pull"
	case DecisionSkip:
		return "skip"
	case DecisionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Conflict describes one divergence for the prompter. It carries everything
// needed to show the user a diff and ask for a decision.
type Conflict struct {
	SourcePath  string
	Destination string
	Block       block.Block
	DestContent string
}

// Prompter obtains a SyncDecision for a conflict. Implementations live with
// the CLI; the core never reads a terminal.
type Prompter interface {
	Resolve(c Conflict) SyncDecision
}

// PrompterFunc adapts a plain function to the Prompter interface.
type PrompterFunc func(c Conflict) SyncDecision

// Resolve calls f.
func (f PrompterFunc) Resolve(c Conflict) SyncDecision {
	return f(c)
}

// Merge folds destContent into block i of doc, splicing the block's span
// and shifting subsequent spans. When comment wrapping was active the
// fragment starts with a provenance banner that must not leak into the
// composite source, so it is stripped first.
func Merge(doc *block.Document, i int, destContent string, style comments.Style, commentsOn bool) error {
	content := destContent
	if commentsOn {
		content = comments.StripBanner(content, style)
	}
	return doc.Merge(i, content)
}
