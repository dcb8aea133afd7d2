package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/carver/internal/orchestrator"
)

const (
	treeBranch = "├─ "
	treeLast   = "└─ "
)

var (
	headerStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	fileStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	writeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unchangedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	conflictStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	conflictHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	conflictDetailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	diffAddStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	diffDelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// printer renders live per-action output and the final summary.
type printer struct {
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// hooks adapts the printer to the orchestrator's observer interface.
func (p *printer) hooks() orchestrator.Hooks {
	return orchestrator.Hooks{
		FileStart: p.fileStart,
		BlockDone: p.blockDone,
		FileDone:  p.fileDone,
	}
}

func (p *printer) fileStart(path string) {
	fmt.Fprintf(p.out, "%s %s\n", headerStyle.Render("CARVER:"), fileStyle.Render(path))
}

func (p *printer) blockDone(e orchestrator.Entry, last bool) {
	tree := treeBranch
	if last {
		tree = treeLast
	}

	label := e.Action
	style := writeStyle
	switch e.Action {
	case "write":
		label = e.Reason
	case "unchanged":
		style = unchangedStyle
	case "conflict":
		style = conflictStyle
		if e.Decision != "" {
			label = "conflict (" + e.Decision + ")"
		}
	case "rejected", "error":
		style = errorStyle
	}
	if e.DryRun {
		label += " (dry run)"
	}

	target := e.Path
	if target == "" {
		target = e.Destination
	}
	line := fmt.Sprintf("%s%s %s", tree, style.Render(label), fileStyle.Render(target))
	if e.Message != "" {
		line += " " + unchangedStyle.Render(e.Message)
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) fileDone(path string, rewritten bool) {
	if rewritten {
		fmt.Fprintf(p.out, "%s %s %s\n", headerStyle.Render("CARVER:"), writeStyle.Render("updated source"), fileStyle.Render(path))
	}
}

// summary renders the final report in the requested format.
func (p *printer) summary(report *orchestrator.Report, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(p.out, string(data))
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprint(p.out, string(data))
	case "text":
		p.textSummary(report)
	default:
		return fmt.Errorf("unknown format %q (want text, json, or yaml)", format)
	}
	return nil
}

func (p *printer) textSummary(report *orchestrator.Report) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "%s %d file(s): %d created, %d overwritten, %d unchanged",
		headerStyle.Render("Summary:"),
		report.Files, report.Created, report.Overwritten, report.Unchanged)
	if report.Merged > 0 || report.Skipped > 0 {
		fmt.Fprintf(p.out, ", %d merged, %d skipped", report.Merged, report.Skipped)
	}
	fmt.Fprintln(p.out)

	if report.Conflicts > 0 {
		fmt.Fprintln(p.out, conflictStyle.Render(fmt.Sprintf("%d conflict(s)", report.Conflicts)))
	}
	if report.Rejected > 0 {
		fmt.Fprintln(p.out, errorStyle.Render(fmt.Sprintf("%d rejected destination(s)", report.Rejected)))
	}
	if report.Errors > 0 {
		fmt.Fprintln(p.out, errorStyle.Render(fmt.Sprintf("%d error(s)", report.Errors)))
	}
	for _, w := range report.Warnings {
		fmt.Fprintln(p.out, conflictStyle.Render("warning: ")+w.File+": "+w.Warning)
	}
	if report.Cancelled {
		fmt.Fprintln(p.out, errorStyle.Render("batch cancelled"))
	}
}
