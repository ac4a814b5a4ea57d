package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree() *ResultTree {
	return &ResultTree{
		Generator: "Robot 7.0",
		Suite: &Suite{
			Name: "Tests",
			Suites: []*Suite{
				{
					Name: "Admin",
					Tests: []*Test{
						{Name: "Create Release", Status: TestStatusPass, Tags: []string{"Dev", "Test"}},
						{Name: "Publish Release", Status: TestStatusFail, Tags: []string{"Dev"}, Message: "\x1b[31mboom\x1b[0m"},
					},
				},
				{
					Name: "Public",
					Tests: []*Test{
						{Name: "Find Statistics", Status: TestStatusSkip, Tags: []string{"Test"}},
					},
				},
				{Name: "Empty"},
			},
		},
	}
}

func TestResultTree_Finalize(t *testing.T) {
	tree := newTestTree()
	tree.Finalize()

	assert.Equal(t, "s1", tree.Suite.ID)
	assert.Equal(t, "s1-s1", tree.Suite.Suites[0].ID)
	assert.Equal(t, "s1-s1-t2", tree.Suite.Suites[0].Tests[1].ID)
	assert.Equal(t, "s1-s3", tree.Suite.Suites[2].ID)

	assert.Equal(t, TestStatusFail, tree.Suite.Status)
	assert.Equal(t, TestStatusFail, tree.Suite.Suites[0].Status)
	assert.Equal(t, TestStatusSkip, tree.Suite.Suites[1].Status)
	assert.Equal(t, TestStatusSkip, tree.Suite.Suites[2].Status, "suite without tests is skipped")

	stats := tree.Statistics
	assert.Equal(t, StatEntry{Name: "All Tests", Pass: 1, Fail: 1, Skip: 1}, stats.Total)
	require.Len(t, stats.Suites, 4)
	assert.Equal(t, SuiteStat{ID: "s1", Name: "Tests", Pass: 1, Fail: 1, Skip: 1}, stats.Suites[0])
	assert.Equal(t, SuiteStat{ID: "s1-s1", Name: "Tests.Admin", Pass: 1, Fail: 1}, stats.Suites[1])
	assert.Equal(t, SuiteStat{ID: "s1-s2", Name: "Tests.Public", Skip: 1}, stats.Suites[2])
	assert.Equal(t, SuiteStat{ID: "s1-s3", Name: "Tests.Empty"}, stats.Suites[3])

	require.Len(t, stats.Tags, 2)
	assert.Equal(t, StatEntry{Name: "Dev", Pass: 1, Fail: 1}, stats.Tags[0])
	assert.Equal(t, StatEntry{Name: "Test", Pass: 1, Skip: 1}, stats.Tags[1])
}

func TestResultTree_EmptyTree(t *testing.T) {
	tree := &ResultTree{}
	tree.Finalize()

	assert.True(t, tree.IsEmpty())
	assert.Empty(t, tree.Tests())
	assert.Equal(t, TestStatusSkip, tree.Status())
	assert.Equal(t, ResultStats{}, tree.Counts())
	assert.Nil(t, tree.FindSuite("Tests"))
}

func TestResultTree_TestsAndFind(t *testing.T) {
	tree := newTestTree()
	tree.Finalize()

	refs := tree.Tests()
	require.Len(t, refs, 3)
	assert.Equal(t, "Tests.Admin.Create Release", refs[0].LongName())
	assert.Equal(t, "Tests.Public.Find Statistics", refs[2].LongName())

	suite := tree.FindSuite("Tests.Public")
	require.NotNil(t, suite)
	assert.Equal(t, "Public", suite.Name)
	assert.Equal(t, 3, tree.Suite.TestCount())
	assert.Equal(t, ResultStats{Total: 3, Passed: 1, Failed: 1, Skipped: 1}, tree.Counts())
}

func TestResultTree_CloneIsDeep(t *testing.T) {
	tree := newTestTree()
	tree.Finalize()
	tree.Suite.Suites[0].Tests[0].History = []TestStatus{TestStatusPass}

	clone := tree.Clone()
	clone.Suite.Suites[0].Tests[0].Status = TestStatusFail
	clone.Suite.Suites[0].Tests[0].Tags[0] = "Changed"
	clone.Suite.Suites[0].Tests[0].History[0] = TestStatusFail
	clone.Suite.Suites = clone.Suite.Suites[:1]

	assert.Equal(t, TestStatusPass, tree.Suite.Suites[0].Tests[0].Status)
	assert.Equal(t, "Dev", tree.Suite.Suites[0].Tests[0].Tags[0])
	assert.Equal(t, TestStatusPass, tree.Suite.Suites[0].Tests[0].History[0])
	assert.Len(t, tree.Suite.Suites, 3)
}

func TestCombine(t *testing.T) {
	admin := &ResultTree{Suite: &Suite{
		Name:   "Tests",
		Suites: []*Suite{{Name: "Admin", Tests: []*Test{{Name: "A", Status: TestStatusPass}}}},
	}}
	public := &ResultTree{Suite: &Suite{
		Name:   "Tests",
		Suites: []*Suite{{Name: "Public", Tests: []*Test{{Name: "B", Status: TestStatusFail}}}},
	}}

	t.Run("same root is unified", func(t *testing.T) {
		combined := Combine("Tests", admin, nil, public)
		require.False(t, combined.IsEmpty())
		assert.Equal(t, "Tests", combined.Suite.Name)
		require.Len(t, combined.Suite.Suites, 2)
		assert.Equal(t, TestStatusFail, combined.Status())
		assert.Equal(t, "s1-s2-t1", combined.Suite.Suites[1].Tests[0].ID)
	})

	t.Run("different roots get a synthetic parent", func(t *testing.T) {
		fileA := &ResultTree{Suite: &Suite{Name: "Admin", Tests: []*Test{{Name: "A", Status: TestStatusPass}}}}
		fileB := &ResultTree{Suite: &Suite{Name: "Public", Tests: []*Test{{Name: "B", Status: TestStatusPass}}}}
		combined := Combine("Tests", fileA, fileB)
		assert.Equal(t, "Tests", combined.Suite.Name)
		require.Len(t, combined.Suite.Suites, 2)
		assert.Equal(t, TestStatusPass, combined.Status())
	})

	t.Run("nothing to combine", func(t *testing.T) {
		assert.True(t, Combine("Tests").IsEmpty())
	})
}

func TestSummarize(t *testing.T) {
	tree := newTestTree()
	tree.Finalize()

	summary := Summarize(tree, "run-1", "dev", 2, 3*time.Second)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, "dev", summary.Environment)
	assert.Equal(t, 2, summary.Attempts)
	assert.Equal(t, TestStatusFail, summary.Status)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.FailedTests, 1)
	assert.Equal(t, "Tests.Admin.Publish Release", summary.FailedTests[0].Name)
	assert.Equal(t, "boom", summary.FailedTests[0].Message)
	assert.InDelta(t, 50.0, summary.PassRate(), 0.001)
}

func TestRunSpec_ForAttempt(t *testing.T) {
	spec := RunSpec{Environment: "dev", Scope: RunScopeFull, Debug: true}

	rerun := spec.ForAttempt(2, "/out/attempt-2", []SuitePath{{"Tests", "Admin"}, {"Tests", "Release 1.2"}})
	assert.Equal(t, 2, rerun.Attempt)
	assert.Equal(t, RunScopeFailing, rerun.Scope)
	assert.Equal(t, []string{"Tests.Admin", "Tests.Release 1.2"}, rerun.Suites)
	assert.Equal(t, SuitePath{"Tests", "Release 1.2"}, rerun.ScopePaths()[1])
	assert.Equal(t, "/out/attempt-2", rerun.OutputDir)
	assert.Equal(t, "DEBUG", rerun.LogLevel())

	full := spec.ForAttempt(1, "/out/attempt-1", nil)
	assert.Equal(t, RunScopeFull, full.Scope)
	assert.Nil(t, full.Suites)
	assert.Nil(t, full.ScopePaths())

	byHand := RunSpec{Scope: RunScopeFailing, Suites: []string{"Tests.Admin"}}
	assert.Equal(t, []SuitePath{{"Tests", "Admin"}}, byHand.ScopePaths())
	assert.Equal(t, 0, spec.Attempt, "original spec is untouched")
}

func TestTimes_Duration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Times{Elapsed: "1.500"}.Duration())
	assert.Equal(t, 2*time.Second, Times{
		StartTime: "20240101 10:00:00.000",
		EndTime:   "20240101 10:00:02.000",
	}.Duration())
	assert.Equal(t, time.Duration(0), Times{StartTime: "N/A", EndTime: "N/A"}.Duration())
	assert.Equal(t, time.Duration(0), Times{}.Duration())
}

func TestSynthesizeFailure(t *testing.T) {
	tree := SynthesizeFailure([]SuitePath{{"Tests", "Admin", "Releases"}, {"Tests", "Public"}}, "robot exited with code 252")

	require.False(t, tree.IsEmpty())
	assert.Equal(t, "Tests", tree.Suite.Name)
	assert.Equal(t, TestStatusFail, tree.Status())

	releases := tree.FindSuite("Tests.Admin.Releases")
	require.NotNil(t, releases)
	require.Len(t, releases.Tests, 1)
	assert.True(t, releases.Tests[0].IsPlaceholder())
	assert.Equal(t, NoResultsTestName, releases.Tests[0].Name)
	assert.Equal(t, "robot exited with code 252", releases.Message)

	assert.NotNil(t, tree.FindSuite("Tests.Public"))
	assert.Equal(t, ResultStats{Total: 2, Failed: 2}, tree.Counts())
	require.Len(t, tree.Errors, 1)
	assert.Equal(t, "ERROR", tree.Errors[0].Level)
}

func TestSynthesizeFailure_Root(t *testing.T) {
	tree := SynthesizeFailure([]SuitePath{{"Tests"}}, "crashed")
	require.Len(t, tree.Suite.Tests, 1)
	assert.Empty(t, tree.Suite.Suites)
	assert.False(t, (&Test{Name: "real"}).IsPlaceholder())
}

func TestSynthesizeFailure_DottedSuiteName(t *testing.T) {
	tree := SynthesizeFailure([]SuitePath{{"Tests", "Release 1.2"}}, "crashed")

	require.Len(t, tree.Suite.Suites, 1)
	release := tree.Suite.Suites[0]
	assert.Equal(t, "Release 1.2", release.Name)
	assert.Empty(t, release.Suites)
	require.Len(t, release.Tests, 1)
	assert.True(t, release.Tests[0].IsPlaceholder())
	assert.Same(t, release, tree.FindSuite("Tests.Release 1.2"))
}

func TestWalkSuitePaths(t *testing.T) {
	tree := &ResultTree{Suite: &Suite{Name: "Tests", Suites: []*Suite{
		{Name: "Release 1.2", Suites: []*Suite{{Name: "Publish"}}},
		{Name: "Admin"},
	}}}

	var paths []SuitePath
	tree.WalkSuitePaths(func(path SuitePath, s *Suite) bool {
		paths = append(paths, path)
		return true
	})
	assert.Equal(t, []SuitePath{
		{"Tests"},
		{"Tests", "Release 1.2"},
		{"Tests", "Release 1.2", "Publish"},
		{"Tests", "Admin"},
	}, paths, "kept paths are not overwritten by later siblings")
	assert.Equal(t, []string{"Tests", "Tests.Release 1.2", "Tests.Release 1.2.Publish", "Tests.Admin"}, LongNames(paths))
}
