package merge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

func writeAttempt(t *testing.T, dir string, tr *types.ResultTree, artifacts ...string) {
	t.Helper()
	require.NoError(t, robotxml.WriteFile(filepath.Join(dir, robotxml.OutputFile), tr))
	for _, a := range artifacts {
		path := filepath.Join(dir, a)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(dir+"/"+a), 0644))
	}
}

func TestMergeDirs(t *testing.T) {
	root := t.TempDir()
	attempt1 := filepath.Join(root, "attempt-1")
	attempt2 := filepath.Join(root, "attempt-2")

	writeAttempt(t, attempt1,
		tree("Tests", suite("A", test("a1", types.TestStatusFail, "boom")), suite("B", test("b1", types.TestStatusPass, ""))),
		"selenium-screenshot-1.png", "videos/a1.webm", "log.html")
	writeAttempt(t, attempt2,
		tree("Tests", suite("A", test("a1", types.TestStatusPass, ""))),
		"selenium-screenshot-1.png")

	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)
	merged, err := m.MergeDirs(root, attempt1, attempt2)
	require.NoError(t, err)

	assert.Equal(t, types.ResultStats{Total: 2, Passed: 2}, merged.Counts())

	onDisk, err := robotxml.ReadFile(filepath.Join(root, robotxml.OutputFile))
	require.NoError(t, err)
	assert.Equal(t, []types.TestStatus{types.TestStatusFail, types.TestStatusPass}, findTest(t, onDisk, "Tests.A.a1").History)
	assert.FileExists(t, filepath.Join(root, robotxml.XUnitFile))

	// attempts below the report directory are referenced where they are
	assert.NoFileExists(t, filepath.Join(root, "selenium-screenshot-1.png"))
	data, err := os.ReadFile(filepath.Join(attempt2, "selenium-screenshot-1.png"))
	require.NoError(t, err)
	assert.Equal(t, attempt2+"/selenium-screenshot-1.png", string(data), "artifacts are never copied onto themselves")
}

// screenshotTest fails with a message embedding a screenshot, the way the
// browser keywords report a failure
func screenshotTest(name string, status types.TestStatus) *types.Test {
	tt := test(name, status, `*HTML* boom <img src="selenium-screenshot-1.png" width="800px">`)
	tt.Body = []byte(`<kw name="Capture Page Screenshot"><msg level="INFO" html="true">&lt;a href="selenium-screenshot-1.png"&gt;&lt;img src="selenium-screenshot-1.png"&gt;&lt;/a&gt;</msg></kw>`)
	return tt
}

func TestMergeDirs_CollidingArtifactsKeepTheirReferences(t *testing.T) {
	root := t.TempDir()
	attempt1 := filepath.Join(root, "attempt-1")
	attempt2 := filepath.Join(root, "attempt-2")
	require.NoError(t, robotxml.WriteFile(filepath.Join(attempt1, robotxml.OutputFile),
		tree("Tests", suite("A", screenshotTest("a1", types.TestStatusFail), screenshotTest("a2", types.TestStatusFail)))))
	require.NoError(t, os.WriteFile(filepath.Join(attempt1, "selenium-screenshot-1.png"), []byte("ATTEMPT1"), 0644))
	require.NoError(t, robotxml.WriteFile(filepath.Join(attempt2, robotxml.OutputFile),
		tree("Tests", suite("A", screenshotTest("a1", types.TestStatusFail)))))
	require.NoError(t, os.WriteFile(filepath.Join(attempt2, "selenium-screenshot-1.png"), []byte("ATTEMPT2"), 0644))

	dst := filepath.Join(root, "merged")
	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)
	_, err := m.MergeDirs(dst, attempt1, attempt2)
	require.NoError(t, err)

	onDisk, err := robotxml.ReadFile(filepath.Join(dst, robotxml.OutputFile))
	require.NoError(t, err)

	resolve := func(s string) string {
		t.Helper()
		refs := referencePattern.FindAllStringSubmatch(s, -1)
		require.NotEmpty(t, refs)
		data, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(refs[0][2])))
		require.NoError(t, err)
		for _, ref := range refs {
			assert.Equal(t, refs[0][2], ref[2])
		}
		return string(data)
	}

	rerun := findTest(t, onDisk, "Tests.A.a1")
	assert.True(t, strings.HasPrefix(rerun.Message, "*HTML* "))
	assert.Equal(t, "ATTEMPT2", resolve(rerun.Message))
	assert.Equal(t, "ATTEMPT2", resolve(string(rerun.Body)))

	notRerun := findTest(t, onDisk, "Tests.A.a2")
	assert.Equal(t, "ATTEMPT1", resolve(notRerun.Message))
	assert.Equal(t, "ATTEMPT1", resolve(string(notRerun.Body)))
}

func TestMergeDirs_SameAttemptNameTwice(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "run-1", "output")
	second := filepath.Join(root, "run-2", "output")
	writeAttempt(t, first, tree("Tests", suite("A", test("a1", types.TestStatusFail, ""))), "shot.png")
	writeAttempt(t, second, tree("Tests", suite("A", test("a1", types.TestStatusPass, ""))), "shot.png")

	dst := filepath.Join(root, "merged")
	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)
	_, err := m.MergeDirs(dst, first, second)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dst, "output", "shot.png"))
	require.NoError(t, err)
	assert.Equal(t, first+"/shot.png", string(data))
	data, err = os.ReadFile(filepath.Join(dst, "output-2", "shot.png"))
	require.NoError(t, err)
	assert.Equal(t, second+"/shot.png", string(data))
}

func TestRelocateReferences(t *testing.T) {
	tr := tree("Tests", suite("A",
		test("a1", types.TestStatusFail, `*HTML* <a href="shots/one.png">one</a> <img src='missing.png'> <a href="https://example.com/x.png">x</a> <img src="/abs.png"> <a href="../up.png">up</a>`),
	))
	tr.Suite.Suites[0].Teardown = []byte(`<msg html="true">&lt;img src=&quot;shots/one.png&quot;&gt;</msg>`)

	present := map[string]bool{"shots/one.png": true, "abs.png": true, "up.png": true}
	n := RelocateReferences(tr, "attempt-2", func(ref string) bool { return present[ref] })

	assert.Equal(t, 2, n)
	msg := tr.Suite.Suites[0].Tests[0].Message
	assert.Contains(t, msg, `href="attempt-2/shots/one.png"`)
	assert.Contains(t, msg, `src='missing.png'`)
	assert.Contains(t, msg, `href="https://example.com/x.png"`)
	assert.Contains(t, msg, `src="/abs.png"`)
	assert.Contains(t, msg, `href="../up.png"`)
	assert.Equal(t, `<msg html="true">&lt;img src=&quot;attempt-2/shots/one.png&quot;&gt;</msg>`, string(tr.Suite.Suites[0].Teardown))

	assert.Zero(t, RelocateReferences(tr, "", func(string) bool { return true }))
}

func TestMergeDir_FirstAttemptMissing(t *testing.T) {
	root := t.TempDir()
	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)

	_, err := m.MergeDir(root, filepath.Join(root, "attempt-1"))
	require.Error(t, err)
	assert.True(t, IsMergeInputError(err))
}

func TestMergeDir_FirstAttemptCorrupt(t *testing.T) {
	root := t.TempDir()
	attempt1 := filepath.Join(root, "attempt-1")
	require.NoError(t, os.MkdirAll(attempt1, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(attempt1, robotxml.OutputFile), []byte("<robot><suite"), 0644))

	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)
	_, err := m.MergeDir(root, attempt1)
	assert.True(t, IsMergeInputError(err))
}

func TestMergeDir_LaterAttemptMissingKeepsReport(t *testing.T) {
	root := t.TempDir()
	attempt1 := filepath.Join(root, "attempt-1")
	writeAttempt(t, attempt1, tree("Tests", suite("A", test("a1", types.TestStatusFail, "boom"))))

	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)
	_, err := m.MergeDir(root, attempt1)
	require.NoError(t, err)

	merged, err := m.MergeDir(root, filepath.Join(root, "attempt-2"))
	require.NoError(t, err)
	assert.Equal(t, types.ResultStats{Total: 1, Failed: 1}, merged.Counts())
}

func TestMergeDirs_NoDirs(t *testing.T) {
	m := NewMerger(log.NewLogger(log.DiscardHandler()), nil)
	_, err := m.MergeDirs(t.TempDir())
	require.Error(t, err)
}

func TestCopyArtifacts_CustomGlobs(t *testing.T) {
	src := filepath.Join(t.TempDir(), "attempt-1")
	dst := t.TempDir()
	for _, name := range []string{"keep.txt", "deep/nested/keep.txt", "skip.png"} {
		path := filepath.Join(src, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	}

	m := NewMerger(log.NewLogger(log.DiscardHandler()), []string{"**/*.txt"})
	copied, err := m.CopyArtifacts(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, copied)
	assert.FileExists(t, filepath.Join(dst, "keep.txt"))
	assert.FileExists(t, filepath.Join(dst, "deep", "nested", "keep.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "skip.png"))
}
