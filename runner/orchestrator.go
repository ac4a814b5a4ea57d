package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dfe-analytical-services/robot-rerun/filter"
	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/metrics"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// State is a step of the rerun state machine
type State string

const (
	StateInitialRun    State = "INITIAL_RUN"
	StateCheckFailures State = "CHECK_FAILURES"
	StateRerun         State = "RERUN"
	StateMerge         State = "MERGE"
	StateDone          State = "DONE"
)

// Outcome describes a completed run
type Outcome struct {
	// Report is the cumulative tree written to the output directory
	Report   *types.ResultTree
	Attempts int
	// States lists every state entered, in order
	States []State
	// FailingSuites is the scope a further attempt would have had
	FailingSuites []string
	Duration      time.Duration
}

// Orchestrator executes an initial attempt and reruns the failing suites
// until they pass or the attempts run out.
type Orchestrator struct {
	log           log.Logger
	backend       Backend
	merger        *merge.Merger
	marker        *FailMarker
	tracer        trace.Tracer
	rerunAttempts int

	mu      sync.Mutex
	state   State
	attempt int
}

// OrchestratorConfig holds the collaborators of an Orchestrator
type OrchestratorConfig struct {
	Log           log.Logger
	Backend       Backend
	Merger        *merge.Merger
	Marker        *FailMarker // optional
	RerunAttempts int
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if cfg.RerunAttempts < 0 {
		return nil, fmt.Errorf("rerun attempts cannot be negative, got %d", cfg.RerunAttempts)
	}
	merger := cfg.Merger
	if merger == nil {
		merger = merge.NewMerger(cfg.Log, nil)
	}
	return &Orchestrator{
		log:           cfg.Log.New("component", "orchestrator"),
		backend:       cfg.Backend,
		merger:        merger,
		marker:        cfg.Marker,
		tracer:        otel.Tracer("rerun orchestrator"),
		rerunAttempts: cfg.RerunAttempts,
	}, nil
}

// MaxAttempts returns the number of attempts a run may take
func (o *Orchestrator) MaxAttempts() int {
	return 1 + o.rerunAttempts
}

// Run executes spec and returns the outcome once no suite fails or the
// attempts are exhausted. Each attempt writes into its own directory below
// spec.OutputDir and is merged into the report there before the scope of the
// next attempt is computed.
//
// The first attempt must produce results; its failure is returned as a
// *merge.MergeInputError. A later attempt without results is logged and
// leaves the report unchanged.
func (o *Orchestrator) Run(ctx context.Context, spec types.RunSpec) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("run %s", spec.Environment))
	defer span.End()

	start := time.Now()
	outcome := &Outcome{}
	enter := func(s State) {
		outcome.States = append(outcome.States, s)
		o.setProgress(s, outcome.Attempts)
		o.log.Debug("Entering state", "state", s, "attempt", outcome.Attempts)
	}

	var cumulative *types.ResultTree
	var scope []types.SuitePath
	state := StateInitialRun
	for state != StateDone {
		enter(state)
		switch state {
		case StateInitialRun, StateRerun:
			attempt := outcome.Attempts + 1
			attemptSpec := spec.ForAttempt(attempt, AttemptDir(spec.OutputDir, attempt), scope)
			tree, err := o.runAttempt(ctx, attemptSpec)
			outcome.Attempts = attempt
			if err != nil {
				if ctx.Err() != nil {
					span.SetStatus(codes.Error, "interrupted")
					return nil, fmt.Errorf("run interrupted: %w", ctx.Err())
				}
				if attempt == 1 {
					span.RecordError(err)
					span.SetStatus(codes.Error, "first attempt failed")
					return nil, &merge.MergeInputError{Dir: attemptSpec.OutputDir, Err: err}
				}
				o.log.Error("Attempt produced no results, keeping previous report", "attempt", attempt, "error", err)
				metrics.RecordErrorDetails("attempt", err)
				state = StateCheckFailures
				continue
			}

			enter(StateMerge)
			merged, err := o.merger.Commit(spec.OutputDir, cumulative, tree, attemptSpec.OutputDir)
			if merged == nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to merge attempt %d: %w", attempt, err)
			}
			if err != nil {
				metrics.RecordErrorDetails("artifacts", err)
			}
			cumulative = merged
			state = StateCheckFailures

		case StateCheckFailures:
			scope = filter.FailingSuitePaths(cumulative)
			outcome.FailingSuites = types.LongNames(scope)
			switch {
			case len(scope) == 0:
				o.log.Info("No failing suites", "attempts", outcome.Attempts)
				state = StateDone
			case outcome.Attempts >= o.MaxAttempts():
				o.log.Warn("Rerun attempts exhausted", "attempts", outcome.Attempts, "failingSuites", len(scope))
				state = StateDone
			default:
				o.log.Info("Rerunning failing suites", "attempt", outcome.Attempts+1, "of", o.MaxAttempts(), "suites", outcome.FailingSuites)
				state = StateRerun
			}
		}
	}
	enter(StateDone)

	outcome.Report = cumulative
	outcome.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("attempts", outcome.Attempts),
		attribute.String("status", cumulative.Status().String()),
	)
	return outcome, nil
}

// Progress returns the state the running session is in and the number of
// attempts completed so far. The state is empty before Run is called.
func (o *Orchestrator) Progress() (State, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.attempt
}

func (o *Orchestrator) setProgress(s State, attempts int) {
	o.mu.Lock()
	o.state = s
	o.attempt = attempts
	o.mu.Unlock()
}

// runAttempt executes one attempt under its own span
func (o *Orchestrator) runAttempt(ctx context.Context, spec types.RunSpec) (*types.ResultTree, error) {
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("attempt %d", spec.Attempt))
	defer span.End()
	span.SetAttributes(
		attribute.String("scope", string(spec.Scope)),
		attribute.StringSlice("suites", spec.Suites),
	)

	if o.marker != nil {
		if err := o.marker.Reset(); err != nil {
			o.log.Warn("Could not reset fail marker", "error", err)
		}
	}

	o.log.Info("Starting attempt", "attempt", spec.Attempt, "scope", spec.Scope, "outputDir", spec.OutputDir)
	start := time.Now()
	tree, err := o.backend.Execute(ctx, spec)
	duration := time.Since(start)
	metrics.RecordAttempt(spec.Environment, spec.Attempt, spec.Scope, duration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if tree.IsEmpty() {
		err := fmt.Errorf("attempt %d returned an empty result", spec.Attempt)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	counts := tree.Counts()
	o.log.Info("Attempt completed",
		"attempt", spec.Attempt,
		"duration", duration,
		"total", counts.Total,
		"passed", counts.Passed,
		"failed", counts.Failed,
		"skipped", counts.Skipped)
	return tree, nil
}
