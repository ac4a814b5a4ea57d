package merge

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// DefaultArtifactGlobs matches the screenshots and recordings produced by
// the browser keywords.
var DefaultArtifactGlobs = []string{"**/*.png", "**/*.jpg", "**/*.webm", "**/*.mp4"}

// Merger maintains a cumulative report directory
type Merger struct {
	log   log.Logger
	globs []string
}

// NewMerger creates a Merger copying artifacts that match globs. Empty globs
// fall back to DefaultArtifactGlobs.
func NewMerger(logger log.Logger, globs []string) *Merger {
	if len(globs) == 0 {
		globs = DefaultArtifactGlobs
	}
	return &Merger{
		log:   logger.New("component", "merger"),
		globs: globs,
	}
}

// Commit folds next into cumulative, writes the result document and xUnit
// summary into dst and makes the artifacts of attemptDir available below it.
// An attemptDir inside dst is referenced in place; any other is copied into
// its own directory below dst, and the references of next are prefixed with
// that directory. The merged tree is returned even when some artifacts could
// not be copied.
func (m *Merger) Commit(dst string, cumulative, next *types.ResultTree, attemptDir string) (*types.ResultTree, error) {
	var served string
	var needsCopy bool
	if attemptDir != "" && !next.IsEmpty() {
		dir, copyTo, err := artifactDir(dst, attemptDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve artifact directory: %w", err)
		}
		served, needsCopy = dir, copyTo
		next = next.Clone()
		keep := ArtifactExists(attemptDir)
		n := RelocateReferences(next, served, func(ref string) bool {
			return m.matches(ref) && keep(ref)
		})
		m.log.Debug("Relocated artifact references", "attempt_dir", attemptDir, "dir", served, "count", n)
	}

	merged := Merge(cumulative, next)
	if merged.IsEmpty() {
		return merged, fmt.Errorf("nothing to write to %s", dst)
	}

	if err := robotxml.WriteFile(filepath.Join(dst, robotxml.OutputFile), merged); err != nil {
		return nil, fmt.Errorf("failed to write cumulative report: %w", err)
	}
	if err := robotxml.WriteXUnitFile(filepath.Join(dst, robotxml.XUnitFile), merged); err != nil {
		return nil, fmt.Errorf("failed to write xunit report: %w", err)
	}

	counts := merged.Counts()
	m.log.Info("Merged attempt results",
		"attempt_dir", attemptDir,
		"total", counts.Total,
		"passed", counts.Passed,
		"failed", counts.Failed,
		"skipped", counts.Skipped)

	if !needsCopy {
		return merged, nil
	}
	copied, err := m.CopyArtifacts(attemptDir, filepath.Join(dst, served))
	if err != nil {
		m.log.Warn("Some artifacts could not be copied", "attempt_dir", attemptDir, "error", err)
		return merged, err
	}
	m.log.Debug("Copied artifacts", "attempt_dir", attemptDir, "dir", served, "count", copied)
	return merged, nil
}

// MergeDir merges attemptDir/output.xml into the cumulative report held in
// dst, creating it when absent.
func (m *Merger) MergeDir(dst, attemptDir string) (*types.ResultTree, error) {
	var cumulative *types.ResultTree
	existing, err := robotxml.ReadFile(filepath.Join(dst, robotxml.OutputFile))
	switch {
	case err == nil:
		cumulative = existing
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read cumulative report: %w", err)
	}

	next, err := robotxml.ReadFile(filepath.Join(attemptDir, robotxml.OutputFile))
	if err != nil {
		if cumulative == nil {
			return nil, &MergeInputError{Dir: attemptDir, Err: err}
		}
		m.log.Warn("Skipping attempt without results", "attempt_dir", attemptDir, "error", err)
		return cumulative, nil
	}

	return m.Commit(dst, cumulative, next, attemptDir)
}

// MergeDirs folds attempt directories into dst in the order given
func (m *Merger) MergeDirs(dst string, dirs ...string) (*types.ResultTree, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no attempt directories to merge")
	}
	var merged *types.ResultTree
	var copyErrs error
	for _, dir := range dirs {
		tree, err := m.MergeDir(dst, dir)
		if err != nil {
			if tree == nil {
				return nil, err
			}
			copyErrs = multierror.Append(copyErrs, err)
		}
		merged = tree
	}
	return merged, copyErrs
}
