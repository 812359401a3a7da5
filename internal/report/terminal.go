package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle   = lipgloss.NewStyle().Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// maybeNoStyle disables ANSI styling when w isn't a terminal (e.g. piped
// output); called before writing a styled summary.
func maybeNoStyle(w io.Writer) {
	if f, ok := w.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) {
			headerStyle = headerStyle.UnsetForeground().UnsetBold()
			labelStyle = labelStyle.UnsetForeground()
			valueStyle = valueStyle.UnsetBold()
			warningStyle = warningStyle.UnsetForeground().UnsetBold()
			dangerStyle = dangerStyle.UnsetForeground().UnsetBold()
		}
	}
}

// WriteTerminalSummary prints the availability/top-cause/degraded summary a
// human running `report` sees at the end of the run, independent of the
// Markdown file.
func WriteTerminalSummary(w io.Writer, b Bundle) error {
	maybeNoStyle(w)

	fmt.Fprintln(w, headerStyle.Render("Network Jitter Diagnostic Summary"))
	if b.Provenance.Degraded {
		fmt.Fprintln(w, warningStyle.Render("DEGRADED: inputs incomplete, levels lowered"))
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Valid session:"), valueStyle.Render(fmt.Sprintf("%v", b.HasValidSession)))

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"RANK", "CAUSE", "LEVEL", "SCORE", "CONFIDENCE"}),
		tablewriter.WithBorders(tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off}),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
	)
	top := b.Causes
	if len(top) > 3 {
		top = top[:3]
	}
	for i, c := range top {
		level := string(c.Level)
		row := []string{fmt.Sprintf("%d", i+1), string(c.Cause), level, fmt.Sprintf("%.2f", c.Score), string(c.Confidence)}
		table.Append(row)
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(top) > 0 && top[0].Confidence == "high" {
		fmt.Fprintln(w, dangerStyle.Render("Top cause is high-confidence: "+string(top[0].Cause)))
	}
	return nil
}
