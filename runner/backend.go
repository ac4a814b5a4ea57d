package runner

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// Backend executes one attempt and returns its result tree. Test failures
// are reported inside the tree; an error means the attempt produced no
// usable results.
type Backend interface {
	Execute(ctx context.Context, spec types.RunSpec) (*types.ResultTree, error)
}

// CommandBuilder creates the command for a robot invocation. The returned
// func releases anything the builder allocated.
type CommandBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// ExecCommandBuilder returns a CommandBuilder running commands in workDir
func ExecCommandBuilder(workDir string) CommandBuilder {
	return func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
		cmd := exec.CommandContext(ctx, name, arg...)
		cmd.Dir = workDir
		return cmd, func() {}
	}
}

// AttemptDir returns the output directory of an attempt below outputDir
func AttemptDir(outputDir string, attempt int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s%d", AttemptDirPrefix, attempt))
}
