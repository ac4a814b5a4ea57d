package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	rerun "github.com/dfe-analytical-services/robot-rerun"
	"github.com/dfe-analytical-services/robot-rerun/exitcodes"
	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/resolver"
	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitcodes.Success},
		{"test failure", rerun.NewTestFailureError([]string{"Tests.A.a1"}, 2), exitcodes.TestFailure},
		{"config error", &resolver.ConfigError{Field: "env", Reason: "unknown"}, exitcodes.RuntimeErr},
		{"merge input error", fmt.Errorf("run: %w", &merge.MergeInputError{Dir: "attempt-1", Err: errors.New("missing")}), exitcodes.RuntimeErr},
		{"runtime error", rerun.NewRuntimeError(errors.New("boom")), exitcodes.RuntimeErr},
		{"other", errors.New("flag provided but not defined"), exitcodes.TestFailure},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}

func TestMergeCommand(t *testing.T) {
	root := t.TempDir()
	attempt := filepath.Join(root, "attempt-1")
	tree := &types.ResultTree{Suite: &types.Suite{Name: "Tests", Suites: []*types.Suite{{
		Name:  "Admin",
		Tests: []*types.Test{{Name: "Sign in", Status: types.TestStatusPass}},
	}}}}
	tree.Finalize()
	require.NoError(t, robotxml.WriteFile(filepath.Join(attempt, robotxml.OutputFile), tree))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ExitErrHandler = nil

	outDir := filepath.Join(root, "merged")
	err := app.Run([]string{"robot-rerun", "merge", "--output-dir", outDir, attempt})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, robotxml.OutputFile))
	assert.Contains(t, out.String(), "UI Test Results")

	err = newTestApp(&out).Run([]string{"robot-rerun", "merge", "--output-dir", outDir, attempt})
	require.Error(t, err)
	assert.Equal(t, exitcodes.RuntimeErr, exitCode(err))

	err = newTestApp(&out).Run([]string{"robot-rerun", "merge", "--output-dir", outDir, "--append", attempt})
	require.NoError(t, err)
}

func newTestApp(w *bytes.Buffer) *cli.App {
	app := newApp()
	app.Writer = w
	app.ExitErrHandler = nil
	return app
}

func TestRunRequiresEnv(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ExitErrHandler = nil

	err := app.Run([]string{"robot-rerun", "--tests", t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, exitcodes.RuntimeErr, exitCode(err))
}
