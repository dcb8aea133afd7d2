package orchestrator

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/carver/internal/block"
	"github.com/conneroisu/carver/internal/errors"
)

// Discover returns the composite files to process. A single explicit file
// is accepted as-is; a directory is walked recursively for the composite
// suffix. Symbolic-link composite files are skipped so editor backup links
// are not processed twice. Exclude patterns are doublestar globs matched
// against the path relative to root.
func Discover(source string, exclude []string) ([]string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.NewIOError("source-missing", "no such file or directory", err).WithFile(source)
	}
	if !info.IsDir() {
		return []string{source}, nil
	}

	var files []string
	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, the rest of the walk continues.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(source, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != source && excluded(rel, exclude) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), block.CompositeSuffix) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if excluded(rel, exclude) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, errors.NewIOError("walk-failed", "cannot walk source directory", walkErr).WithFile(source)
	}

	sort.Strings(files)
	return files, nil
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
