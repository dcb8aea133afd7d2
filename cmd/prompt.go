package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/conneroisu/carver/internal/syncer"
)

// terminalPrompter asks the user how to resolve a conflict, showing a
// unified diff of the fragment against the block it was generated from.
// It implements syncer.Prompter; the core never reads the terminal itself.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

// Resolve shows the conflict and reads y/n/c until it gets a valid answer.
// An input error (closed stdin) cancels the batch rather than looping.
func (p *terminalPrompter) Resolve(c syncer.Conflict) syncer.SyncDecision {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, conflictHeaderStyle.Render(fmt.Sprintf("Conflict: %s", c.Destination)))
	fmt.Fprintln(p.out, conflictDetailStyle.Render(fmt.Sprintf("block from %s differs from the fragment on disk", c.SourcePath)))

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(c.Block.Content),
		B:        difflib.SplitLines(c.DestContent),
		FromFile: c.SourcePath,
		ToFile:   c.Destination,
		Context:  2,
	})
	if err == nil && diff != "" {
		fmt.Fprintln(p.out)
		fmt.Fprint(p.out, renderDiff(diff))
	}

	for {
		fmt.Fprint(p.out, "Pull fragment into source? [y]es / [n]o / [c]ancel: ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			return syncer.DecisionCancel
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return syncer.DecisionPull
		case "n", "no":
			return syncer.DecisionSkip
		case "c", "cancel":
			return syncer.DecisionCancel
		}
	}
}

// renderDiff colorizes a unified diff line by line.
func renderDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			b.WriteString(diffAddStyle.Render(strings.TrimSuffix(line, "\n")) + "\n")
		case strings.HasPrefix(line, "-"):
			b.WriteString(diffDelStyle.Render(strings.TrimSuffix(line, "\n")) + "\n")
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}
