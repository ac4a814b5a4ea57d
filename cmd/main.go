package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	rerun "github.com/dfe-analytical-services/robot-rerun"
	"github.com/dfe-analytical-services/robot-rerun/exitcodes"
	"github.com/dfe-analytical-services/robot-rerun/flags"
	"github.com/dfe-analytical-services/robot-rerun/logging"
	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/resolver"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "robot-rerun"
	app.Usage = "Robot Framework UI test runner with failed suite reruns"
	app.Description = "robot-rerun runs the UI test suites against an environment, reruns failing suites and merges the attempts into one report"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{
		{
			Name:      "merge",
			Usage:     "Merge finished attempt directories into one report",
			ArgsUsage: "ATTEMPT_DIR [ATTEMPT_DIR...]",
			Flags:     cliapp.ProtectFlags(flags.MergeFlags),
			Action:    mergeAction,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitCode(err)))
		}
	}
	return app
}

// exitCode maps a run error to the process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case resolver.IsConfigError(err), merge.IsMergeInputError(err), rerun.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		// Test failures and unspecified errors
		return exitcodes.TestFailure
	}
}

func setupLogger(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()
	return logger
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logger := setupLogger(ctx)

	cfg, err := rerun.NewConfig(ctx, logger)
	if err != nil {
		if resolver.IsConfigError(err) {
			return nil, err
		}
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, rerun.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	if cfg.CI {
		cfg.Log = logging.NewRedactingLogger(cfg.Log, resolver.SecretValues(cfg.Spec))
		oplog.SetGlobalLogHandler(cfg.Log.Handler())
	}
	cfg.Log.Debug("Config", "environment", cfg.Spec.Environment, "tests", cfg.Spec.TargetPath, "outputDir", cfg.Spec.OutputDir)

	pipeline, err := rerun.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, rerun.NewRuntimeError(fmt.Errorf("failed to create pipeline: %w", err))
	}

	return pipeline, nil
}

func mergeAction(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	_, err := rerun.MergeReports(logger, rerun.MergeOptions{
		OutputDir:     ctx.String(flags.OutputDir.Name),
		AttemptDirs:   ctx.Args().Slice(),
		ArtifactGlobs: ctx.StringSlice(flags.ArtifactGlobs.Name),
		ShowPassing:   ctx.Bool(flags.ShowPassing.Name),
		Append:        ctx.Bool(flags.Append.Name),
		Stdout:        ctx.App.Writer,
	})
	return err
}
