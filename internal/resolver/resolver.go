// Package resolver turns a block's raw destination attribute into a safe
// absolute output path, sandboxed to the configured base directory.
package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// NamePlaceholder inside a destination attribute is replaced with the
// composite file's base name (composite suffix stripped).
const NamePlaceholder = "{NAME}"

// ResolvedPath is the outcome of resolving one destination. When Valid is
// false, Reason carries a generic message suitable for user-facing output;
// it deliberately contains no resolved path detail.
type ResolvedPath struct {
	AbsolutePath string
	BaseDir      string
	Valid        bool
	Reason       string
}

// Resolve substitutes the name placeholder, joins the destination with
// baseDir, canonicalizes the result, and verifies it stays a strict
// descendant of baseDir. It performs no I/O beyond filesystem
// canonicalization; canonicalization failures mark the path invalid rather
// than returning an error.
func Resolve(destRaw, baseDir, sourceBase string) ResolvedPath {
	dest := strings.ReplaceAll(destRaw, NamePlaceholder, sourceBase)

	if strings.TrimSpace(dest) == "" {
		return invalid("empty destination")
	}
	// Destinations are always relative to the base directory; an absolute
	// path is an escape attempt, not an override.
	if filepath.IsAbs(dest) || strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "\\") {
		return invalid("absolute destination not allowed")
	}

	canonBase, err := canonicalize(baseDir)
	if err != nil {
		return invalid("output directory cannot be resolved")
	}

	candidate, err := canonicalizeLenient(filepath.Join(canonBase, dest))
	if err != nil {
		return invalid("destination cannot be resolved")
	}

	if !isStrictDescendant(canonBase, candidate) {
		return invalid("destination escapes the output directory")
	}

	return ResolvedPath{
		AbsolutePath: candidate,
		BaseDir:      canonBase,
		Valid:        true,
	}
}

func invalid(reason string) ResolvedPath {
	return ResolvedPath{Valid: false, Reason: reason}
}

// canonicalize makes p absolute and resolves symbolic links. The path must
// exist.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// canonicalizeLenient resolves symbolic links on the deepest existing
// ancestor of p and rejoins the not-yet-existing remainder lexically. A
// destination in a directory the writer has not created yet still resolves
// this way.
func canonicalizeLenient(p string) (string, error) {
	var remainder []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, remainder...)
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		remainder = append([]string{filepath.Base(cur)}, remainder...)
		cur = parent
	}
}

// isStrictDescendant reports whether target sits below base, compared
// component-wise. A naive string-prefix check would let /base-evil match a
// /base prefix; Rel avoids that. The base directory itself is never a
// valid target file, so equal paths fail the check too.
func isStrictDescendant(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
