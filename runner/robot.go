package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

var _ Backend = (*RobotBackend)(nil)

// RobotBackend runs every attempt as a single robot process
type RobotBackend struct {
	log        log.Logger
	binary     string
	listener   string
	marker     *FailMarker
	cmdBuilder CommandBuilder
	console    io.Writer
}

// RobotOption configures a RobotBackend
type RobotOption func(*RobotBackend)

// WithBinary overrides DefaultRobotBinary
func WithBinary(binary string) RobotOption {
	return func(b *RobotBackend) {
		if binary != "" {
			b.binary = binary
		}
	}
}

// WithKeywordListener overrides DefaultKeywordListener
func WithKeywordListener(listener string) RobotOption {
	return func(b *RobotBackend) {
		if listener != "" {
			b.listener = listener
		}
	}
}

// WithFailMarker exports marker to every robot process
func WithFailMarker(marker *FailMarker) RobotOption {
	return func(b *RobotBackend) { b.marker = marker }
}

// WithConsole mirrors robot console output to w
func WithConsole(w io.Writer) RobotOption {
	return func(b *RobotBackend) { b.console = w }
}

// NewRobotBackend creates a backend invoking robot through cmdBuilder
func NewRobotBackend(logger log.Logger, cmdBuilder CommandBuilder, opts ...RobotOption) (*RobotBackend, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cmdBuilder == nil {
		return nil, fmt.Errorf("cmdBuilder cannot be nil")
	}
	b := &RobotBackend{
		log:        logger.New("component", "robot-backend"),
		binary:     DefaultRobotBinary,
		listener:   DefaultKeywordListener,
		cmdBuilder: cmdBuilder,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Execute runs robot for spec and parses the result document it writes.
//
// Exit codes up to 250 count failing tests and are not errors. When no
// result document is written, a scoped attempt yields a tree in which the
// selected suites fail so they are tried again; a full attempt is an error.
func (b *RobotBackend) Execute(ctx context.Context, spec types.RunSpec) (*types.ResultTree, error) {
	if spec.OutputDir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if err := os.MkdirAll(spec.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(spec.OutputDir, robotxml.OutputFile)
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale results: %w", err)
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := b.buildArgs(spec)
	cmd, cleanup := b.cmdBuilder(runCtx, b.binary, args...)
	defer cleanup()

	cmd.Env = append(os.Environ(), b.environment(spec)...)
	// Browsers started by robot may outlive it and keep the output pipe open
	cmd.WaitDelay = processWaitDelay

	consoleFile, err := os.Create(filepath.Join(spec.OutputDir, ConsoleLogFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create console log: %w", err)
	}
	defer func() { _ = consoleFile.Close() }()

	tail := newTailBuffer(defaultTailBytes)
	writers := []io.Writer{consoleFile, tail}
	if b.console != nil {
		writers = append(writers, b.console)
	}
	cmd.Stdout = io.MultiWriter(writers...)
	cmd.Stderr = cmd.Stdout

	b.log.Info("Running robot",
		"attempt", spec.Attempt,
		"scope", spec.Scope,
		"suites", len(spec.Suites),
		"outputDir", spec.OutputDir)
	b.log.Debug("Robot arguments", "binary", b.binary, "args", args)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		exitErr := &exec.ExitError{}
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("attempt %d interrupted: %w", spec.Attempt, ctx.Err())
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			// Could not start the process at all
			return nil, fmt.Errorf("failed to run %s: %w", b.binary, runErr)
		}
	}
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	tree, readErr := robotxml.ReadFile(outputPath)
	if readErr == nil {
		if exitCode > maxFailureExitCode {
			b.log.Warn("Robot exited abnormally but wrote results", "exitCode", exitCode)
		}
		b.log.Info("Robot finished", "attempt", spec.Attempt, "exitCode", exitCode, "duration", duration)
		return tree, nil
	}

	reason := fmt.Sprintf("robot exited with code %d and wrote no results", exitCode)
	if timedOut {
		reason = fmt.Sprintf("robot timed out after %v and wrote no results", timeout)
	}
	if snippet := lastLines(stripansi.Strip(tail.String()), 5); snippet != "" {
		reason += ": " + snippet
	}
	b.log.Error("Robot produced no results", "attempt", spec.Attempt, "exitCode", exitCode, "timedOut", timedOut, "error", readErr)

	if paths := spec.ScopePaths(); spec.Scope == types.RunScopeFailing && len(paths) > 0 {
		return types.SynthesizeFailure(paths, reason), nil
	}
	return nil, fmt.Errorf("%s: %w", reason, readErr)
}

func (b *RobotBackend) buildArgs(spec types.RunSpec) []string {
	args := []string{
		"--outputdir", spec.OutputDir,
		"--output", robotxml.OutputFile,
		"--loglevel", spec.LogLevel(),
	}
	for _, tag := range spec.IncludeTags {
		args = append(args, "--include", tag)
	}
	for _, tag := range spec.ExcludeTags {
		args = append(args, "--exclude", tag)
	}

	names := make([]string, 0, len(spec.Variables))
	for name := range spec.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--variable", name+":"+spec.Variables[name])
	}

	for _, pattern := range spec.RemoveKeywords {
		args = append(args, "--removekeywords", pattern)
	}
	if spec.Scope == types.RunScopeFailing {
		for _, suite := range spec.Suites {
			args = append(args, "--suite", suite)
		}
	}
	if spec.FailFast {
		args = append(args, "--exitonfailure")
	}
	if spec.PrintKeywords {
		args = append(args, "--listener", b.listener)
	}
	return append(args, spec.TargetPath)
}

func (b *RobotBackend) environment(spec types.RunSpec) []string {
	names := make([]string, 0, len(spec.Env))
	for name := range spec.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, 0, len(names)+1)
	for _, name := range names {
		env = append(env, name+"="+spec.Env[name])
	}
	if b.marker != nil {
		env = append(env, b.marker.Env())
	}
	return env
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
