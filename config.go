package rerun

import (
	"fmt"
	"path/filepath"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/dfe-analytical-services/robot-rerun/flags"
	"github.com/dfe-analytical-services/robot-rerun/resolver"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// Config holds the application configuration
type Config struct {
	Spec             types.RunSpec // resolved first attempt
	RerunAttempts    int
	ArtifactGlobs    []string
	RobotBinary      string
	KeywordListener  string
	EnvironmentsFile string
	NotifyURLs       []string
	NotifyTemplate   string
	ShowPassing      bool
	CI               bool
	Metrics          opmetrics.CLIConfig
	Log              log.Logger
}

// NewConfig creates a new Config from cli context. Invalid run options are
// returned as a *resolver.ConfigError.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, &resolver.ConfigError{Field: "flags", Reason: err.Error()}
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, &resolver.ConfigError{Field: "metrics", Reason: err.Error()}
	}

	environments := resolver.DefaultEnvironments()
	envFile := ctx.String(flags.EnvironmentsFile.Name)
	if envFile != "" {
		loaded, err := resolver.LoadEnvironments(envFile)
		if err != nil {
			return nil, &resolver.ConfigError{Field: flags.EnvironmentsFile.Name, Reason: err.Error()}
		}
		environments = loaded
	}

	testsPath := ctx.String(flags.TestsPath.Name)
	absTestsPath, err := filepath.Abs(testsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for tests '%s': %w", testsPath, err)
	}
	outputDir := ctx.String(flags.OutputDir.Name)
	if outputDir == "" {
		outputDir = "test-results"
	}
	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for output directory '%s': %w", outputDir, err)
	}

	spec, err := resolver.Resolve(resolver.Options{
		Environment:   ctx.String(flags.Env.Name),
		TargetPath:    absTestsPath,
		OutputDir:     absOutputDir,
		IncludeTags:   ctx.StringSlice(flags.Include.Name),
		ExcludeTags:   ctx.StringSlice(flags.Exclude.Name),
		RerunAttempts: ctx.Int(flags.RerunAttempts.Name),
		FailFast:      ctx.Bool(flags.FailFast.Name),
		Visual:        ctx.Bool(flags.Visual.Name),
		Reseed:        ctx.Bool(flags.Reseed.Name),
		Debug:         ctx.Bool(flags.Debug.Name),
		CI:            ctx.Bool(flags.CI.Name),
		PrintKeywords: ctx.Bool(flags.PrintKeywords.Name),
		Processes:     ctx.Int(flags.Processes.Name),
		Timeout:       ctx.Duration(flags.Timeout.Name),
		Environments:  environments,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		Spec:             spec,
		RerunAttempts:    ctx.Int(flags.RerunAttempts.Name),
		ArtifactGlobs:    ctx.StringSlice(flags.ArtifactGlobs.Name),
		RobotBinary:      ctx.String(flags.RobotBinary.Name),
		KeywordListener:  ctx.String(flags.KeywordListener.Name),
		EnvironmentsFile: envFile,
		NotifyURLs:       ctx.StringSlice(flags.NotifyURLs.Name),
		NotifyTemplate:   ctx.String(flags.NotifyTemplate.Name),
		ShowPassing:      ctx.Bool(flags.ShowPassing.Name),
		CI:               ctx.Bool(flags.CI.Name),
		Metrics:          metricsCfg,
		Log:              log,
	}, nil
}
