package rerun

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/reporting"
	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

func writeAttempt(t *testing.T, dir string, tree *types.ResultTree, artifacts ...string) {
	t.Helper()
	require.NoError(t, robotxml.WriteFile(filepath.Join(dir, robotxml.OutputFile), tree))
	for _, name := range artifacts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("png"), 0644))
	}
}

func TestMergeReports(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "attempt-1")
	second := filepath.Join(root, "attempt-2")
	writeAttempt(t, first, suiteTree(suite("A", types.TestStatusFail), suite("B", types.TestStatusPass)), "a-failure.png")
	writeAttempt(t, second, suiteTree(suite("A", types.TestStatusPass)), "a-failure.png")

	out := filepath.Join(root, "merged")
	var buf bytes.Buffer
	tree, err := MergeReports(testLogger(), MergeOptions{
		OutputDir:   out,
		AttemptDirs: []string{first, second},
		Stdout:      &buf,
	})
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusPass, tree.Status())
	assert.Equal(t, 2, tree.Counts().Passed)
	assert.Contains(t, buf.String(), "UI Test Results (2 attempts")

	assert.FileExists(t, filepath.Join(out, robotxml.OutputFile))
	assert.FileExists(t, filepath.Join(out, robotxml.XUnitFile))
	assert.FileExists(t, filepath.Join(out, "attempt-1", "a-failure.png"))
	assert.FileExists(t, filepath.Join(out, "attempt-2", "a-failure.png"))
}

func TestMergeReports_StillFailing(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "attempt-1")
	writeAttempt(t, first, suiteTree(suite("A", types.TestStatusFail, types.TestStatusPass)))

	tree, err := MergeReports(testLogger(), MergeOptions{
		OutputDir:   filepath.Join(root, "merged"),
		AttemptDirs: []string{first},
		Stdout:      &bytes.Buffer{},
	})
	require.Error(t, err)
	require.NotNil(t, tree)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "Tests.A.A a")
}

func TestMergeReports_Errors(t *testing.T) {
	root := t.TempDir()

	_, err := MergeReports(testLogger(), MergeOptions{OutputDir: root})
	assert.True(t, IsRuntimeError(err))

	_, err = MergeReports(testLogger(), MergeOptions{
		OutputDir:   filepath.Join(root, "merged"),
		AttemptDirs: []string{filepath.Join(root, "missing")},
		Stdout:      &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.True(t, merge.IsMergeInputError(err))
}

func TestMergeReports_ExistingReport(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "attempt-1")
	second := filepath.Join(root, "attempt-2")
	writeAttempt(t, first, suiteTree(suite("A", types.TestStatusFail)))
	writeAttempt(t, second, suiteTree(suite("A", types.TestStatusPass)))
	out := filepath.Join(root, "merged")

	_, err := MergeReports(testLogger(), MergeOptions{OutputDir: out, AttemptDirs: []string{first}, Stdout: &bytes.Buffer{}})
	require.True(t, IsTestFailureError(err))

	_, err = MergeReports(testLogger(), MergeOptions{OutputDir: out, AttemptDirs: []string{second}, Stdout: &bytes.Buffer{}})
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.Contains(t, err.Error(), "--append")
	stale, err := robotxml.ReadFile(filepath.Join(out, robotxml.OutputFile))
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusFail, stale.Status(), "a refused merge leaves the report alone")

	var buf bytes.Buffer
	tree, err := MergeReports(testLogger(), MergeOptions{OutputDir: out, AttemptDirs: []string{second}, Append: true, Stdout: &buf})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "UI Test Results (2 attempts", "attempts of the earlier merge are counted")
	assert.Equal(t, types.TestStatusPass, tree.Status())
	assert.Equal(t, []types.TestStatus{types.TestStatusFail, types.TestStatusPass}, tree.FindSuite("Tests.A").Tests[0].History)

	summary, err := reporting.ReadSummary(filepath.Join(out, reporting.SummaryFile))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempts)
	assert.Equal(t, types.TestStatusPass, summary.Status)
	assert.InDelta(t, 100.0, summary.PassRate(), 0.001)
}
