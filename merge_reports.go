package rerun

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/reporting"
	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// MergeOptions configures MergeReports
type MergeOptions struct {
	OutputDir     string
	AttemptDirs   []string
	ArtifactGlobs []string
	ShowPassing   bool
	// Append merges into a report already present in OutputDir. Without
	// it such a directory is refused.
	Append bool
	Stdout io.Writer
}

// MergeReports folds already finished attempt directories into the
// cumulative report in OutputDir, oldest first, and prints the results
// table. An OutputDir that already holds a report is refused unless Append
// is set, in which case that report is the starting point. Failing tests
// left after the merge are returned as a *TestFailureError.
func MergeReports(logger log.Logger, opts MergeOptions) (*types.ResultTree, error) {
	if len(opts.AttemptDirs) == 0 {
		return nil, NewRuntimeError(fmt.Errorf("no attempt directories given"))
	}
	existing := filepath.Join(opts.OutputDir, robotxml.OutputFile)
	if _, err := os.Stat(existing); err == nil && !opts.Append {
		return nil, NewRuntimeError(fmt.Errorf("%s already exists; remove it or pass --append to merge into it", existing))
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create output directory: %w", err))
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	attempts := len(opts.AttemptDirs)
	var prior types.ReportSummary
	if opts.Append {
		summary, err := reporting.ReadSummary(filepath.Join(opts.OutputDir, reporting.SummaryFile))
		switch {
		case err == nil:
			prior = summary
			attempts += summary.Attempts
		case !errors.Is(err, fs.ErrNotExist):
			logger.Warn("Ignoring unreadable summary", "error", err)
		}
	}

	merger := merge.NewMerger(logger, opts.ArtifactGlobs)
	tree, err := merger.MergeDirs(opts.OutputDir, opts.AttemptDirs...)
	if tree == nil {
		if merge.IsMergeInputError(err) {
			return nil, err
		}
		return nil, NewRuntimeError(err)
	}
	if err != nil {
		logger.Warn("Merged with artifact errors", "error", err)
	}

	var duration time.Duration
	if !tree.IsEmpty() {
		duration = tree.Suite.Times.Duration()
	}
	reporting.RenderTable(stdout, tree, attempts, duration, reporting.TableOptions{ShowPassing: opts.ShowPassing})

	summary := types.Summarize(tree, prior.RunID, prior.Environment, attempts, duration)
	if _, err := reporting.WriteSummary(opts.OutputDir, summary); err != nil {
		logger.Error("Failed to write summary", "error", err)
	}
	if len(summary.FailedTests) > 0 {
		failed := make([]string, 0, len(summary.FailedTests))
		for _, f := range summary.FailedTests {
			failed = append(failed, f.Name)
		}
		return tree, NewTestFailureError(failed, attempts)
	}
	return tree, nil
}
