// Package reporting renders the cumulative report of a run for people: a
// console table and a JSON summary next to the result documents.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// maxErrorLength bounds the error column of the results table
const maxErrorLength = 80

// TableOptions controls what RenderTable prints
type TableOptions struct {
	// ShowPassing lists passing tests too; by default only suites and
	// tests that did not pass get their own rows
	ShowPassing bool
	// Style overrides the status-colored default style
	Style *table.Style
}

// RenderTable writes the results table of a cumulative report to w
func RenderTable(w io.Writer, tree *types.ResultTree, attempts int, duration time.Duration, opts TableOptions) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("UI Test Results (%d %s, %s)", attempts, plural(attempts, "attempt"), formatDuration(duration)))

	t.AppendHeader(table.Row{
		"Type", "Name", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status", "Attempts", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Name", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: maxErrorLength, WidthMaxEnforcer: text.WrapSoft},
	})

	if !tree.IsEmpty() {
		appendSuite(t, tree.Suite, 0, opts)
	}

	counts := tree.Counts()
	status := tree.Status()
	switch {
	case opts.Style != nil:
		t.SetStyle(*opts.Style)
	case status == types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case status == types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(duration),
		counts.Total,
		counts.Passed,
		counts.Failed,
		counts.Skipped,
		getResultString(status),
		attempts,
		"",
	})
	t.Render()
}

func appendSuite(t table.Writer, s *types.Suite, depth int, opts TableOptions) {
	stats := suiteCounts(s)
	t.AppendRow(table.Row{
		"Suite",
		indent(depth) + s.Name,
		formatDuration(s.Times.Duration()),
		"-",
		stats.Passed,
		stats.Failed,
		stats.Skipped,
		getResultString(s.Status),
		"",
		"",
	})

	for _, child := range s.Suites {
		if !opts.ShowPassing && child.Status == types.TestStatusPass {
			continue
		}
		appendSuite(t, child, depth+1, opts)
	}

	for _, test := range s.Tests {
		if !opts.ShowPassing && test.Status == types.TestStatusPass && len(test.History) < 2 {
			continue
		}
		t.AppendRow(table.Row{
			"Test",
			indent(depth+1) + test.Name,
			formatDuration(test.Times.Duration()),
			"1",
			boolToInt(test.Status == types.TestStatusPass),
			boolToInt(test.Status == types.TestStatusFail),
			boolToInt(test.Status == types.TestStatusSkip),
			getResultString(test.Status),
			formatHistory(test.History),
			extractKeyErrorMessage(test),
		})
	}
}

func suiteCounts(s *types.Suite) types.ResultStats {
	tree := &types.ResultTree{Suite: s}
	return tree.Counts()
}

// extractKeyErrorMessage returns the first meaningful line of a failing
// test's message, without the merge note
func extractKeyErrorMessage(test *types.Test) string {
	if test.Status == types.TestStatusPass || test.Message == "" {
		return ""
	}
	msg := stripansi.Strip(test.Message)
	lines := strings.Split(msg, "\n")
	if len(lines) > 1 && strings.Contains(lines[0], types.MergedMarker) {
		lines = lines[1:]
	}
	line := strings.TrimSpace(lines[0])
	if len(line) > maxErrorLength {
		return line[:maxErrorLength-3] + "..."
	}
	return line
}

func formatHistory(history []types.TestStatus) string {
	if len(history) < 2 {
		return ""
	}
	parts := make([]string, len(history))
	for i, s := range history {
		parts[i] = s.String()
	}
	return strings.Join(parts, " → ")
}

func indent(depth int) string {
	if depth == 0 {
		return ""
	}
	return strings.Repeat("│   ", depth-1) + "├── "
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a short marker for a status
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	case types.TestStatusNotRun:
		return "· not run"
	default:
		return "✗ fail"
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
