package types

import "time"

// RunScope says whether an attempt executes everything or only failing suites
type RunScope string

const (
	RunScopeFull    RunScope = "full"
	RunScopeFailing RunScope = "failing"
)

// RunSpec is the resolved configuration for one execution attempt
type RunSpec struct {
	Environment string
	TargetPath  string
	OutputDir   string
	IncludeTags []string
	ExcludeTags []string

	// Variables are passed to the test runner as name:value pairs
	Variables map[string]string
	// Env holds the environment bindings exported to the test process
	Env map[string]string
	// SecretEnv names the bindings whose values must never be logged
	SecretEnv []string
	// RemoveKeywords lists keyword patterns stripped from the emitted report
	RemoveKeywords []string

	Scope  RunScope
	Suites []string // suite long names when Scope is RunScopeFailing
	// SuitePaths locates the same suites as Suites. It may be unset on
	// specs built by hand; see ScopePaths.
	SuitePaths []SuitePath

	FailFast      bool
	Visual        bool
	Debug         bool
	PrintKeywords bool
	Processes     int
	Timeout       time.Duration
	Attempt       int
}

// ForAttempt returns a copy of the spec scoped to the given attempt. A
// non-empty suite list narrows the run to those suites.
func (s RunSpec) ForAttempt(attempt int, outputDir string, suites []SuitePath) RunSpec {
	c := s
	c.Attempt = attempt
	c.OutputDir = outputDir
	c.Scope = RunScopeFull
	c.Suites = nil
	c.SuitePaths = nil
	if len(suites) > 0 {
		c.Scope = RunScopeFailing
		c.SuitePaths = append([]SuitePath(nil), suites...)
		c.Suites = LongNames(c.SuitePaths)
	}
	return c
}

// ScopePaths returns the paths of the scoped suites. Without SuitePaths
// the long names in Suites are split on the separator.
func (s RunSpec) ScopePaths() []SuitePath {
	if len(s.SuitePaths) > 0 {
		return s.SuitePaths
	}
	var paths []SuitePath
	for _, name := range s.Suites {
		paths = append(paths, SplitLongName(name))
	}
	return paths
}

// LogLevel returns the runner log level implied by the debug flag
func (s RunSpec) LogLevel() string {
	if s.Debug {
		return "DEBUG"
	}
	return "INFO"
}
