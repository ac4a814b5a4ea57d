package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "ROBOT_RERUN"

var (
	Env = &cli.StringFlag{
		Name:    "env",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENV"),
		Usage:   "Environment to run against (eg. 'dev', 'test', 'prod')",
	}
	TestsPath = &cli.StringFlag{
		Name:    "tests",
		Value:   "tests/",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TESTS"),
		Usage:   "Path to the suite directory or .robot file to run",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output-dir",
		Value:   "test-results",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_DIR"),
		Usage:   "Directory receiving the cumulative report and one sub-directory per attempt",
	}
	Include = &cli.StringSliceFlag{
		Name:    "include",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INCLUDE"),
		Usage:   "Only run tests with these tags, in addition to the environment's tags",
	}
	Exclude = &cli.StringSliceFlag{
		Name:    "exclude",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXCLUDE"),
		Usage:   "Never run tests with these tags, in addition to the environment's tags",
	}
	RerunAttempts = &cli.IntFlag{
		Name:    "rerun-attempts",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RERUN_ATTEMPTS"),
		Usage:   "Number of times failing suites are rerun after the first attempt",
	}
	FailFast = &cli.BoolFlag{
		Name:    "fail-fast",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_FAST"),
		Usage:   "Stop an attempt at its first failing test",
	}
	Visual = &cli.BoolFlag{
		Name:    "visual",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VISUAL"),
		Usage:   "Run the browser with a visible window instead of headless",
	}
	Reseed = &cli.BoolFlag{
		Name:    "reseed",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESEED"),
		Usage:   "Also run the seed data generation suites",
	}
	Debug = &cli.BoolFlag{
		Name:    "debug",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEBUG"),
		Usage:   "Run robot with DEBUG log level",
	}
	CI = &cli.BoolFlag{
		Name:    "ci",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CI"),
		Usage:   "CI mode: strip credential keywords from reports and redact secrets from logs",
	}
	PrintKeywords = &cli.BoolFlag{
		Name:    "print-keywords",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRINT_KEYWORDS"),
		Usage:   "Print keywords to the console as they run",
	}
	Processes = &cli.IntFlag{
		Name:    "processes",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROCESSES"),
		Usage:   "Number of robot processes running suites in parallel",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   2 * time.Hour,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Maximum duration of a single attempt",
	}
	ArtifactGlobs = &cli.StringSliceFlag{
		Name:    "artifact-globs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ARTIFACT_GLOBS"),
		Usage:   "Patterns of attempt files the cumulative report links to (default screenshots and videos)",
	}
	RobotBinary = &cli.StringFlag{
		Name:    "robot-binary",
		Value:   "robot",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ROBOT_BINARY"),
		Usage:   "Path to the robot executable",
	}
	KeywordListener = &cli.StringFlag{
		Name:    "keyword-listener",
		Value:   "listeners/KeywordListener.py",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "KEYWORD_LISTENER"),
		Usage:   "Listener used by --print-keywords",
	}
	EnvironmentsFile = &cli.StringFlag{
		Name:    "environments",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ENVIRONMENTS"),
		Usage:   "YAML file extending the built in environment table",
	}
	NotifyURLs = &cli.StringSliceFlag{
		Name:    "notify-url",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NOTIFY_URL"),
		Usage:   "Shoutrrr service URL receiving the run summary (eg. 'slack://token@channel')",
	}
	NotifyTemplate = &cli.StringFlag{
		Name:    "notify-template",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NOTIFY_TEMPLATE"),
		Usage:   "Go template for the notification message, with sprig functions",
	}
	ShowPassing = &cli.BoolFlag{
		Name:    "show-passing",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PASSING"),
		Usage:   "List passing tests in the results table",
	}
	Append = &cli.BoolFlag{
		Name:    "append",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "APPEND"),
		Usage:   "Merge into the report already in the output directory instead of refusing to",
	}
)

var requiredFlags = []cli.Flag{
	Env,
}

var optionalFlags = []cli.Flag{
	TestsPath,
	OutputDir,
	Include,
	Exclude,
	RerunAttempts,
	FailFast,
	Visual,
	Reseed,
	Debug,
	CI,
	PrintKeywords,
	Processes,
	Timeout,
	ArtifactGlobs,
	RobotBinary,
	KeywordListener,
	EnvironmentsFile,
	NotifyURLs,
	NotifyTemplate,
	ShowPassing,
}

// Flags holds every flag of the run command
var Flags []cli.Flag

// mergeOnlyFlags are accepted by the merge command alone
var mergeOnlyFlags = []cli.Flag{
	Append,
}

// MergeFlags holds the flags of the merge command
var MergeFlags = append([]cli.Flag{
	OutputDir,
	ArtifactGlobs,
	ShowPassing,
}, mergeOnlyFlags...)

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// CheckRequired reports the first required flag that was not set. Required
// flags are checked here instead of by cli so the merge command can share
// the application's flags.
func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
