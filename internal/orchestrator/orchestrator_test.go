package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/carver/internal/syncer"
)

const compositeText = `<style carve:file="hero.css">
.hero { background: blue; }
</style>
<script carve:file="hero.js">
console.log("hero");
</script>
<carve carve:file="hero.html">
<div class="hero"></div>
</carve>
`

// newRun builds a source tree with one composite file and separate output
// dirs per kind.
func newRun(t *testing.T, text string) (source string, opts Options) {
	t.Helper()
	dir := t.TempDir()
	source = filepath.Join(dir, "page.carve.html")
	require.NoError(t, os.WriteFile(source, []byte(text), 0o644))

	opts = Options{
		ScriptDir: filepath.Join(dir, "js"),
		StyleDir:  filepath.Join(dir, "css"),
		MarkupDir: filepath.Join(dir, "html"),
	}
	for _, d := range []string{opts.ScriptDir, opts.StyleDir, opts.MarkupDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return source, opts
}

func TestRunFirstChop(t *testing.T) {
	source, opts := newRun(t, compositeText)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 0, report.Overwritten)
	assert.True(t, report.AllClean())

	data, err := os.ReadFile(filepath.Join(opts.StyleDir, "hero.css"))
	require.NoError(t, err)
	assert.Equal(t, "\n.hero { background: blue; }\n", string(data))

	data, err = os.ReadFile(filepath.Join(opts.ScriptDir, "hero.js"))
	require.NoError(t, err)
	assert.Equal(t, "\nconsole.log(\"hero\");\n", string(data))
}

func TestRunIdempotent(t *testing.T) {
	source, opts := newRun(t, compositeText)

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Overwritten)
	assert.Equal(t, 3, report.Unchanged)
	assert.True(t, report.AllClean())
}

func TestRunIdempotentWithComments(t *testing.T) {
	source, opts := newRun(t, compositeText)
	opts.Mode.Comments = true

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(opts.StyleDir, "hero.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "/* carved from page.carve.html -> hero.css */")

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)
	assert.True(t, report.AllClean())
}

func TestRunPlainModeOverwrites(t *testing.T) {
	source, opts := newRun(t, compositeText)

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	// Someone edits the fragment by hand.
	dest := filepath.Join(opts.StyleDir, "hero.css")
	require.NoError(t, os.WriteFile(dest, []byte(".hero { background: red; }\n"), 0o644))

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overwritten)
	assert.Equal(t, 2, report.Unchanged)
	assert.True(t, report.AllClean())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "\n.hero { background: blue; }\n", string(data))
}

func TestRunWarnModePreservesConflict(t *testing.T) {
	source, opts := newRun(t, compositeText)

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	dest := filepath.Join(opts.StyleDir, "hero.css")
	edited := ".hero { background: red; }\n"
	require.NoError(t, os.WriteFile(dest, []byte(edited), 0o644))

	opts.Mode.Warn = true
	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 0, report.Overwritten)
	assert.False(t, report.AllClean())

	// The conflicting fragment keeps the edit.
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, edited, string(data))
}

func TestRunUpdatePull(t *testing.T) {
	source, opts := newRun(t, compositeText)

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	dest := filepath.Join(opts.StyleDir, "hero.css")
	edited := "\n.hero { background: red; }\n"
	require.NoError(t, os.WriteFile(dest, []byte(edited), 0o644))

	opts.Mode.Warn = true
	opts.Mode.Update = true
	opts.Prompter = syncer.PrompterFunc(func(c syncer.Conflict) syncer.SyncDecision {
		assert.Equal(t, source, c.SourcePath)
		assert.Equal(t, edited, c.DestContent)
		return syncer.DecisionPull
	})

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	assert.False(t, report.Cancelled)

	// The edit flowed back into the composite source.
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Contains(t, string(data), ".hero { background: red; }")
	assert.Contains(t, string(data), "console.log(\"hero\");")

	// After the pull, everything agrees again.
	opts.Mode.Update = false
	opts.Mode.Warn = false
	opts.Prompter = nil
	report, err = Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Unchanged)
}

func TestRunUpdateSkipLeavesBothSides(t *testing.T) {
	source, opts := newRun(t, compositeText)

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	dest := filepath.Join(opts.StyleDir, "hero.css")
	edited := ".hero { background: red; }\n"
	require.NoError(t, os.WriteFile(dest, []byte(edited), 0o644))

	opts.Mode.Warn = true
	opts.Mode.Update = true
	opts.Prompter = syncer.PrompterFunc(func(syncer.Conflict) syncer.SyncDecision {
		return syncer.DecisionSkip
	})

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Merged)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, edited, string(data))

	data, err = os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, compositeText, string(data))
}

func TestRunUpdateCancelCommitsEarlierMerges(t *testing.T) {
	source, opts := newRun(t, compositeText)

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)

	// Diverge two fragments; pull the first, cancel on the second.
	require.NoError(t, os.WriteFile(
		filepath.Join(opts.StyleDir, "hero.css"),
		[]byte("\n.hero { background: red; }\n"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(opts.ScriptDir, "hero.js"),
		[]byte("\nconsole.log(\"edited\");\n"), 0o644))

	opts.Mode.Warn = true
	opts.Mode.Update = true
	calls := 0
	opts.Prompter = syncer.PrompterFunc(func(syncer.Conflict) syncer.SyncDecision {
		calls++
		if calls == 1 {
			return syncer.DecisionPull
		}
		return syncer.DecisionCancel
	})

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Merged)

	// The merge applied before the cancel point is on disk.
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Contains(t, string(data), ".hero { background: red; }")
	// The cancelled block's content is untouched.
	assert.Contains(t, string(data), "console.log(\"hero\");")
}

func TestRunUpdateWithoutPrompter(t *testing.T) {
	source, opts := newRun(t, compositeText)
	opts.Mode.Warn = true
	opts.Mode.Update = true

	_, err := Run(context.Background(), source, opts)
	assert.Error(t, err)
}

func TestRunInvalidModeCombination(t *testing.T) {
	source, opts := newRun(t, compositeText)
	opts.Mode.Update = true // without warn
	opts.Prompter = syncer.PrompterFunc(func(syncer.Conflict) syncer.SyncDecision {
		return syncer.DecisionSkip
	})

	_, err := Run(context.Background(), source, opts)
	assert.Error(t, err)
}

func TestRunDryRun(t *testing.T) {
	source, opts := newRun(t, compositeText)
	opts.Mode.DryRun = true

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)

	// Nothing was written.
	entries, err := os.ReadDir(opts.StyleDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunRejectedDestination(t *testing.T) {
	text := `<style carve:file="../escape.css">x</style>
<style carve:file="ok.css">y</style>`
	source, opts := newRun(t, text)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Created)
	assert.False(t, report.AllClean())

	// The valid sibling block was still processed.
	_, statErr := os.Stat(filepath.Join(opts.StyleDir, "ok.css"))
	assert.NoError(t, statErr)
}

func TestRunEmptyDestinationRejected(t *testing.T) {
	text := `<style carve:file="">x</style>`
	source, opts := newRun(t, text)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejected)
}

func TestRunPlaceholderUsesSourceBase(t *testing.T) {
	source, opts := newRun(t, `<style carve:file="{NAME}.css">x</style>`)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	_, err = os.Stat(filepath.Join(opts.StyleDir, "page.css"))
	assert.NoError(t, err)
}

func TestRunNestedAnnotatedUpdatePull(t *testing.T) {
	text := `<carve carve:file="outer.html"><p>o</p><carve carve:file="inner.html"><p>i</p></carve></carve>`
	source, opts := newRun(t, text)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.NotEmpty(t, report.Warnings)

	// The inner annotated element stays inside the outer fragment.
	dest := filepath.Join(opts.MarkupDir, "outer.html")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `carve:file="inner.html"`)

	edited := `<p>edited</p><carve carve:file="inner.html"><p>i</p></carve>`
	require.NoError(t, os.WriteFile(dest, []byte(edited), 0o644))

	opts.Mode.Warn = true
	opts.Mode.Update = true
	opts.Prompter = syncer.PrompterFunc(func(syncer.Conflict) syncer.SyncDecision {
		return syncer.DecisionPull
	})

	report, err = Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	data, err = os.ReadFile(source)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>edited</p>")
	assert.Contains(t, string(data), `carve:file="inner.html"`)
}

func TestRunDanglingSymlinkStaysSandboxed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	source, opts := newRun(t, `<style carve:file="a.css">x</style>`)
	outside := t.TempDir()
	escaped := filepath.Join(outside, "escaped.css")
	require.NoError(t, os.Symlink(escaped, filepath.Join(opts.StyleDir, "a.css")))

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	// The fragment landed inside the base directory, not at the planted
	// link's target.
	data, err := os.ReadFile(filepath.Join(opts.StyleDir, "a.css"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	_, err = os.Stat(escaped)
	assert.True(t, os.IsNotExist(err))
}

func TestRunParseWarningsReported(t *testing.T) {
	source, opts := newRun(t, `<style carve:file="a.css">unclosed`)

	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	require.NotEmpty(t, report.Warnings)
	assert.Equal(t, source, report.Warnings[0].File)
}

func TestRunInvalidUTF8Skipped(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.carve.html")
	// Invalid byte sequence with no BOM, so no encoding fallback applies.
	require.NoError(t, os.WriteFile(bad, []byte("<style\xff\xfe>"), 0o644))
	good := filepath.Join(dir, "good.carve.html")
	require.NoError(t, os.WriteFile(good, []byte(`<style carve:file="a.css">x</style>`), 0o644))

	opts := Options{StyleDir: dir}
	report, err := Run(context.Background(), dir, opts)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Created)
}

func TestRunUTF8BOM(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bom.carve.html")
	text := append([]byte{0xef, 0xbb, 0xbf}, []byte(`<style carve:file="a.css">x</style>`)...)
	require.NoError(t, os.WriteFile(source, text, 0o644))

	opts := Options{StyleDir: dir}
	report, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	data, err := os.ReadFile(filepath.Join(dir, "a.css"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestReadTextFileUTF16(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "u16.carve.html")

	text := "<p>héllo</p>"
	raw := []byte{0xff, 0xfe} // UTF-16LE BOM
	for _, r := range utf16.Encode([]rune(text)) {
		raw = append(raw, byte(r), byte(r>>8))
	}
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	got, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestRunCancelledContext(t *testing.T) {
	source, opts := newRun(t, compositeText)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, source, opts)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Files)
}

func TestRunMissingSource(t *testing.T) {
	_, err := Run(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestRunHooks(t *testing.T) {
	source, opts := newRun(t, compositeText)

	var started []string
	var done []Entry
	opts.Hooks = Hooks{
		FileStart: func(path string) { started = append(started, path) },
		BlockDone: func(e Entry, last bool) { done = append(done, e) },
	}

	_, err := Run(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{source}, started)
	assert.Len(t, done, 3)
}

func TestDiscoverWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.carve.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.carve.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.html"), []byte("x"), 0o644))

	files, err := Discover(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.carve.html"),
		filepath.Join(dir, "sub", "b.carve.html"),
	}, files)
}

func TestDiscoverSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.carve.html")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	files, err := Discover(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestDiscoverExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "x.carve.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "y.carve.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "y.draft.carve.html"), []byte("x"), 0o644))

	files, err := Discover(dir, []string{"**/node_modules/**", "**/*.draft.carve.html"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "src", "y.carve.html")}, files)
}

func TestDiscoverSkipsSymlinkComposites(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	dir := t.TempDir()
	real := filepath.Join(dir, "a.carve.html")
	require.NoError(t, os.WriteFile(real, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(real, filepath.Join(dir, "b.carve.html")))

	files, err := Discover(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{real}, files)
}

func TestReportAllClean(t *testing.T) {
	r := NewReport()
	assert.True(t, r.AllClean())

	r.Conflicts = 1
	assert.False(t, r.AllClean())

	r = NewReport()
	r.Cancelled = true
	assert.False(t, r.AllClean())

	r = NewReport()
	r.Unchanged = 5
	r.Created = 2
	r.Skipped = 1
	assert.True(t, r.AllClean())
}
