// Package writer performs the filesystem side of a sync run: fragment
// writes, composite rewrites after reverse merges, and the destination
// reads the sync engine compares against. Dry-run mode performs every check
// but suppresses mutation.
package writer

import (
	"os"
	"path/filepath"

	"github.com/conneroisu/carver/internal/block"
	"github.com/conneroisu/carver/internal/errors"
	"github.com/conneroisu/carver/internal/resolver"
	"github.com/conneroisu/carver/internal/syncer"
)

// Result reports what a write did, or would have done under dry-run.
type Result struct {
	Path       string
	Written    bool
	DirCreated bool
	DryRun     bool
}

// Apply performs the filesystem effect of an action. Only write actions
// touch the filesystem; every other kind returns an empty result. Directory
// creation failures come back as errors for the caller to record, never as
// a crash.
func Apply(action syncer.Action, resolved resolver.ResolvedPath, content string, dryRun bool) (Result, error) {
	if action.Kind != syncer.ActionWrite {
		return Result{}, nil
	}

	res := Result{Path: resolved.AbsolutePath, DryRun: dryRun}

	dir := filepath.Dir(resolved.AbsolutePath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		res.DirCreated = true
		if !dryRun {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return res, errors.NewIOError("mkdir-failed", "cannot create destination directory", err)
			}
		}
	} else if err != nil {
		return res, errors.NewIOError("stat-failed", "cannot inspect destination directory", err)
	}

	if dryRun {
		return res, nil
	}

	// A symlink at the destination would make WriteFile write through to
	// the link target, possibly outside the sandboxed base directory.
	// Replace the link with a regular file instead.
	if info, lerr := os.Lstat(resolved.AbsolutePath); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(resolved.AbsolutePath); err != nil {
			return res, errors.NewIOError("unlink-failed", "cannot replace destination symlink", err)
		}
	}

	if err := os.WriteFile(resolved.AbsolutePath, []byte(content), 0o644); err != nil {
		return res, errors.NewIOError("write-failed", "cannot write destination file", err)
	}
	res.Written = true
	return res, nil
}

// ReadDestination reads the prior content of a destination file. A missing
// file and a dangling symbolic link both count as "destination absent" and
// return nil without error; any other read failure is an I/O error.
func ReadDestination(path string) (*string, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError("lstat-failed", "cannot inspect destination file", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			// Dangling link: treat as absent and let the write replace it.
			return nil, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read-failed", "cannot read destination file", err)
	}
	s := string(data)
	return &s, nil
}

// WriteDocument rewrites a composite file after reverse merges. Called at
// most once per file per run, and only when at least one block was pulled.
func WriteDocument(doc *block.Document, dryRun bool) error {
	if !doc.Dirty() || dryRun {
		return nil
	}
	if err := os.WriteFile(doc.Path, []byte(doc.Text), 0o644); err != nil {
		return errors.NewIOError("rewrite-failed", "cannot rewrite composite file", err).WithFile(doc.Path)
	}
	return nil
}
