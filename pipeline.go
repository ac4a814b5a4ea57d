package rerun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/google/uuid"

	"github.com/dfe-analytical-services/robot-rerun/exitcodes"
	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/metrics"
	"github.com/dfe-analytical-services/robot-rerun/notify"
	"github.com/dfe-analytical-services/robot-rerun/reporting"
	"github.com/dfe-analytical-services/robot-rerun/runner"
	"github.com/dfe-analytical-services/robot-rerun/service"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// FailMarkerFile is the fail marker below the output directory
const FailMarkerFile = ".fail-marker"

// pipeline implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Pipeline{}

// Pipeline runs one rerun session: the attempts, the reports written from
// the cumulative result and the notification about it.
type Pipeline struct {
	config       *Config
	version      string
	orchestrator *runner.Orchestrator
	notifier     *notify.Notifier
	service      *service.Service // nil unless metrics are enabled
	stdout       io.Writer

	runID   string
	outcome *runner.Outcome
	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// Option configures a Pipeline
type Option func(*pipelineOptions)

type pipelineOptions struct {
	backend runner.Backend
	sinks   []notify.Sink
	stdout  io.Writer
}

// WithBackend replaces the robot backend built from the config
func WithBackend(b runner.Backend) Option {
	return func(o *pipelineOptions) { o.backend = b }
}

// WithSinks adds notification sinks to those built from the config
func WithSinks(sinks ...notify.Sink) Option {
	return func(o *pipelineOptions) { o.sinks = append(o.sinks, sinks...) }
}

// WithStdout redirects the results table and robot console output
func WithStdout(w io.Writer) Option {
	return func(o *pipelineOptions) { o.stdout = w }
}

// New creates a Pipeline from config
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error), opts ...Option) (*Pipeline, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		return nil, errors.New("config logger is required")
	}
	o := &pipelineOptions{stdout: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	spec := config.Spec
	config.Log.Debug("Creating pipeline with config",
		"environment", spec.Environment,
		"tests", spec.TargetPath,
		"outputDir", spec.OutputDir,
		"include", spec.IncludeTags,
		"exclude", spec.ExcludeTags,
		"rerunAttempts", config.RerunAttempts,
		"processes", spec.Processes)

	marker := runner.NewFailMarker(filepath.Join(spec.OutputDir, FailMarkerFile))
	backend := o.backend
	if backend == nil {
		robot, err := runner.NewRobotBackend(config.Log, runner.ExecCommandBuilder(""),
			runner.WithBinary(config.RobotBinary),
			runner.WithKeywordListener(config.KeywordListener),
			runner.WithFailMarker(marker),
			runner.WithConsole(o.stdout))
		if err != nil {
			return nil, fmt.Errorf("failed to create robot backend: %w", err)
		}
		backend = robot
	}
	if spec.Processes > 1 {
		pool, err := runner.NewPoolBackend(config.Log, backend, spec.Processes)
		if err != nil {
			return nil, fmt.Errorf("failed to create pool backend: %w", err)
		}
		backend = pool
	}

	orchestrator, err := runner.NewOrchestrator(runner.OrchestratorConfig{
		Log:           config.Log,
		Backend:       backend,
		Merger:        merge.NewMerger(config.Log, config.ArtifactGlobs),
		Marker:        marker,
		RerunAttempts: config.RerunAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	sinks := o.sinks
	if len(config.NotifyURLs) > 0 {
		sink, err := notify.NewShoutrrrSink(config.NotifyURLs, config.NotifyTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to create notification sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	var svc *service.Service
	if config.Metrics.Enabled {
		svc = service.NewWithAddrs(
			net.JoinHostPort(service.HealthzHost, service.HealthzPort),
			net.JoinHostPort(config.Metrics.ListenAddr, strconv.Itoa(config.Metrics.ListenPort)))
	}

	p := &Pipeline{
		config:           config,
		version:          version,
		orchestrator:     orchestrator,
		notifier:         notify.NewNotifier(config.Log, sinks...),
		service:          svc,
		stdout:           o.stdout,
		runID:            uuid.New().String(),
		shutdownCallback: shutdownCallback,
	}
	if svc != nil {
		svc.Healthz.SetProgressFunc(p.Progress)
	}
	return p, nil
}

// Progress reports the state of the session for the healthz endpoint
func (p *Pipeline) Progress() service.Progress {
	state, attempts := p.orchestrator.Progress()
	return service.Progress{
		RunID:       p.runID,
		Environment: p.config.Spec.Environment,
		State:       string(state),
		Attempts:    attempts,
		MaxAttempts: p.orchestrator.MaxAttempts(),
	}
}

// Start runs the session to completion.
// Start implements the cliapp.Lifecycle interface.
func (p *Pipeline) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			p.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	p.running.Store(true)
	if p.service != nil {
		p.service.Start(ctx)
	}
	p.config.Log.Info("Starting robot-rerun",
		"version", p.version,
		"runId", p.runID,
		"environment", p.config.Spec.Environment,
		"maxAttempts", p.orchestrator.MaxAttempts())

	outcome, err := p.orchestrator.Run(ctx, p.config.Spec)
	if err != nil {
		p.config.Log.Error("Run failed", "runId", p.runID, "error", err)
		metrics.RecordErrorDetails("run", err)
		if merge.IsMergeInputError(err) {
			return err
		}
		return NewRuntimeError(err)
	}
	p.outcome = outcome

	failed := p.report(ctx, outcome)
	if len(failed) > 0 {
		p.config.Log.Warn("Run completed with failures, returning exit code 1", "failed", len(failed))
		return NewTestFailureError(failed, outcome.Attempts)
	}

	p.config.Log.Info("Run completed, exiting", "runId", p.runID, "attempts", outcome.Attempts)
	if p.shutdownCallback != nil {
		go func() {
			p.shutdownCallback(nil)
		}()
	}
	return nil
}

// report writes the summary, prints the results table, records metrics and
// sends notifications. It returns the long names of the failing tests.
func (p *Pipeline) report(ctx context.Context, outcome *runner.Outcome) []string {
	spec := p.config.Spec
	summary := types.Summarize(outcome.Report, p.runID, spec.Environment, outcome.Attempts, outcome.Duration)

	if path, err := reporting.WriteSummary(spec.OutputDir, summary); err != nil {
		p.config.Log.Error("Failed to write summary", "error", err)
		metrics.RecordErrorDetails("summary", err)
	} else {
		p.config.Log.Info("Wrote summary", "path", path)
	}

	reporting.RenderTable(p.stdout, outcome.Report, outcome.Attempts, outcome.Duration, reporting.TableOptions{ShowPassing: p.config.ShowPassing})
	metrics.RecordRun(spec.Environment, p.runID, summary.Status, outcome.Report.Counts(), outcome.Duration)
	p.notifier.Notify(ctx, summary)

	failed := make([]string, 0, len(summary.FailedTests))
	for _, f := range summary.FailedTests {
		failed = append(failed, f.Name)
	}
	return failed
}

// Outcome returns the outcome of the last completed run, or nil
func (p *Pipeline) Outcome() *runner.Outcome {
	return p.outcome
}

// RunID identifies this session in logs, metrics and the summary
func (p *Pipeline) RunID() string {
	return p.runID
}

// Stop implements the cliapp.Lifecycle interface.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.config.Log.Info("Stopping robot-rerun")
	if p.service != nil {
		p.service.Shutdown()
	}
	p.running.Store(false)
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (p *Pipeline) Stopped() bool {
	return !p.running.Load()
}
